package model

import "time"

// Frame is one JPEG-encoded image and the time it was captured.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
	Seq        uint64
}

// Clone returns a deep copy so stages never share the same backing array.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, CapturedAt: f.CapturedAt, Seq: f.Seq}
}

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}
