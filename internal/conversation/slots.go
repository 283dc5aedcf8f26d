package conversation

import "timeoff-bot/internal/model"

// memoryFromSlots keeps the non-empty date and duration slots of one message.
func memoryFromSlots(slots Slots) model.Memory {
	memory := model.Memory{}
	for _, key := range []string{SlotDate, SlotDate1, SlotDuration} {
		if v := slots[key]; v != "" {
			memory[key] = v
		}
	}
	return memory
}

// mergeSlots folds one message's slots into the memory of a pending request.
// A pair of dates replaces both boundaries; a single date fills whichever boundary
// is still empty; a duration always overwrites the previous one.
func mergeSlots(memory model.Memory, slots Slots) model.Memory {
	date, date1 := slots[SlotDate], slots[SlotDate1]
	single := date
	if single == "" {
		single = date1
	}

	switch {
	case date != "" && date1 != "":
		memory[SlotDate] = date
		memory[SlotDate1] = date1
	case single != "" && memory[SlotDate] == "" && memory[SlotDate1] == "":
		memory[SlotDate] = single
	case single != "" && memory[SlotDate] != "":
		memory[SlotDate1] = single
	case single != "" && memory[SlotDate1] != "":
		memory[SlotDate] = single
	}

	if d := slots[SlotDuration]; d != "" {
		memory[SlotDuration] = d
	}
	return memory
}

// sufficient reports whether two of date, date1 and duration are known.
func sufficient(memory model.Memory) bool {
	date := memory[SlotDate] != ""
	date1 := memory[SlotDate1] != ""
	duration := memory[SlotDuration] != ""
	return (date && date1) || (date && duration) || (date1 && duration)
}
