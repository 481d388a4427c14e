package console

import (
	"fmt"
	"time"

	"coinwatch/internal/application/port"
)

type Sink struct{}

func NewSink() port.Sink { return &Sink{} }

func (s *Sink) WriteLive(line string) error {
	fmt.Print(line) // no newline, the line rewrites itself
	return nil
}

func (s *Sink) WriteSnapshot(ts time.Time, table string) error {
	fmt.Print("\n")
	fmt.Printf("%s\n%s\n", ts.Format("2006-01-02 15:04:05"), table)
	fmt.Print("\n")
	return nil
}

func (s *Sink) NewLine() error {
	fmt.Print("\n")
	return nil
}
