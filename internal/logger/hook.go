package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// levelFileHook copies each entry into the file of its level.
type levelFileHook struct {
	writers   map[logrus.Level]io.Writer
	formatter logrus.Formatter
}

func newLevelFileHook(writers map[logrus.Level]io.Writer) *levelFileHook {
	return &levelFileHook{
		writers:   writers,
		formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true},
	}
}

func (h *levelFileHook) Levels() []logrus.Level {
	levels := make([]logrus.Level, 0, len(h.writers))
	for level := range h.writers {
		levels = append(levels, level)
	}
	return levels
}

func (h *levelFileHook) Fire(entry *logrus.Entry) error {
	w, ok := h.writers[entry.Level]
	if !ok {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}
