package handler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"homewatch/internal/config"
)

func TestFrameAssembler(t *testing.T) {
	a := newFrameAssembler()

	require.Nil(t, a.add("kitchen", []byte{0x01, 0x02}), "packet without a start is ignored")
	require.Nil(t, a.add("kitchen", []byte{0xFF, 0xD8, 0x10}))
	require.Nil(t, a.add("hall", []byte{0xFF, 0xD8, 0x20}))
	frame := a.add("kitchen", []byte{0x11, 0xFF, 0xD9})
	require.Equal(t, []byte{0xFF, 0xD8, 0x10, 0x11, 0xFF, 0xD9}, frame)

	// a new header discards the unfinished frame
	require.Nil(t, a.add("hall", []byte{0xFF, 0xD8, 0x30}))
	require.Equal(t, []byte{0xFF, 0xD8, 0x30, 0xFF, 0xD9}, a.add("hall", []byte{0xFF, 0xD9}))

	single := []byte{0xFF, 0xD8, 0x42, 0xFF, 0xD9}
	require.Equal(t, single, a.add("kitchen", single))
}

func TestFrameAssembler_DropsOversizedFrame(t *testing.T) {
	a := newFrameAssembler()
	require.Nil(t, a.add("kitchen", append([]byte{0xFF, 0xD8}, bytes.Repeat([]byte{0x01}, maxFrameSize)...)))
	require.Nil(t, a.add("kitchen", []byte{0xFF, 0xD9}), "buffer was reset")
}

func TestCameraName(t *testing.T) {
	cfg := &config.Config{CameraNames: map[string]string{"10.0.0.5": "kitchen"}}
	require.Equal(t, "kitchen", cameraName(cfg, "10.0.0.5"))
	require.Equal(t, "unknown_10.0.0.6", cameraName(cfg, "10.0.0.6"))
}
