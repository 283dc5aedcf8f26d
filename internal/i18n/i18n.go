package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	ErrUnknownKey   = errors.New("i18n: unknown message key")
	ErrMissingParam = errors.New("i18n: unresolved template parameter")
)

// noValue is what text/template prints for a missing map key.
const noValue = "<no value>"

type ctxKey struct{}

// Catalog maps a message key to one or more equivalent phrasings stored as
// "Key.N" message IDs, and picks one at random on every lookup.
type Catalog struct {
	bundle        *i18n.Bundle
	defaultLocale string
	// locale -> key -> variant message IDs
	variants map[string]map[string][]string

	mu  sync.Mutex
	rnd *rand.Rand
	log *slog.Logger
}

type Option func(*Catalog)

// WithRand pins the variant selection, e.g. rand.New(rand.NewPCG(1, 2)) in tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) { c.rnd = r }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Catalog) {
		if log != nil {
			c.log = log
		}
	}
}

func WithDefaultLocale(locale string) Option {
	return func(c *Catalog) {
		if locale != "" {
			c.defaultLocale = locale
		}
	}
}

// New loads all embedded locale files.
func New(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		bundle:        i18n.NewBundle(language.English),
		defaultLocale: "en",
		variants:      make(map[string]map[string][]string),
		rnd:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		if _, err := c.bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", e.Name(), err)
		}
		if err := c.indexVariants(strings.TrimSuffix(e.Name(), ".json"), data); err != nil {
			return nil, err
		}
	}
	if _, ok := c.variants[c.defaultLocale]; !ok {
		return nil, fmt.Errorf("i18n: no locale file for default locale %q", c.defaultLocale)
	}
	c.log.Debug("i18n: catalog loaded", "locales", len(c.variants), "default", c.defaultLocale)
	return c, nil
}

func (c *Catalog) indexVariants(locale string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: index %s: %w", locale, err)
	}
	keys := make(map[string][]string)
	for id := range messages {
		dot := strings.LastIndexByte(id, '.')
		if dot < 0 {
			keys[id] = append(keys[id], id)
			continue
		}
		if _, err := strconv.Atoi(id[dot+1:]); err != nil {
			keys[id] = append(keys[id], id)
			continue
		}
		keys[id[:dot]] = append(keys[id[:dot]], id)
	}
	for _, ids := range keys {
		sort.Strings(ids)
	}
	c.variants[locale] = keys
	return nil
}

// WithLocale returns a new context carrying the given locale string (e.g. "en", "fr").
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// LocaleFromContext returns the locale set on ctx, or def when none is set.
func LocaleFromContext(ctx context.Context, def string) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return def
}

// Variants reports how many phrasings exist for key in the default locale.
func (c *Catalog) Variants(key string) int {
	return len(c.variants[c.defaultLocale][key])
}

// Pick returns a random phrasing of a message without parameters. Unknown keys
// come back as the key itself so a misconfigured catalog never blanks a reply.
func (c *Catalog) Pick(ctx context.Context, key string) string {
	msg, err := c.Render(ctx, key, nil)
	if err != nil {
		c.log.WarnContext(ctx, "i18n: pick failed", "key", key, "error", err)
		return key
	}
	return msg
}

// Render returns a random phrasing of key with params substituted.
func (c *Catalog) Render(ctx context.Context, key string, params map[string]any) (string, error) {
	locale := LocaleFromContext(ctx, c.defaultLocale)
	ids := c.variants[locale][key]
	if len(ids) == 0 {
		locale = c.defaultLocale
		ids = c.variants[locale][key]
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	l := i18n.NewLocalizer(c.bundle, locale, c.defaultLocale)
	cfg := &i18n.LocalizeConfig{MessageID: ids[c.intN(len(ids))]}
	if params != nil {
		cfg.TemplateData = params
	}
	msg, err := l.Localize(cfg)
	if err != nil {
		return "", fmt.Errorf("i18n: localize %s: %w", cfg.MessageID, err)
	}
	if strings.Contains(msg, noValue) {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, cfg.MessageID)
	}
	return msg, nil
}

func (c *Catalog) intN(n int) int {
	if n == 1 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.IntN(n)
}
