package bus

// Button is one inline control: a visible label and the opaque payload
// returned in the callback when it is pressed.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is a grid of buttons, row by row.
type Keyboard [][]Button

// BuildKeyboard lays buttons out in order into rows of rowWidth.
// The last row holds the remainder.
func BuildKeyboard(buttons []Button, rowWidth int) Keyboard {
	if len(buttons) == 0 {
		return nil
	}
	if rowWidth <= 0 {
		rowWidth = 1
	}
	rows := make(Keyboard, 0, (len(buttons)+rowWidth-1)/rowWidth)
	for start := 0; start < len(buttons); start += rowWidth {
		end := min(start+rowWidth, len(buttons))
		row := make([]Button, end-start)
		copy(row, buttons[start:end])
		rows = append(rows, row)
	}
	return rows
}
