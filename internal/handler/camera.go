package handler

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"

	"homewatch/internal/config"
	"homewatch/internal/logger"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// maxFrameSize drops a camera's partial frame that never sees a JPEG footer.
const maxFrameSize = 4 << 20

// FrameSink receives complete JPEG frames.
type FrameSink interface {
	HandleCameraImage(image []byte, camera string)
}

// frameAssembler rebuilds JPEG frames from per-camera UDP packets. A packet
// starting with the JPEG header begins a frame, one ending with the footer completes it.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// add appends a packet and returns the completed frame, if any.
func (a *frameAssembler) add(camera string, data []byte) []byte {
	imgBuffer, ok := a.buffers[camera]
	if !ok {
		imgBuffer = new(bytes.Buffer)
		a.buffers[camera] = imgBuffer
	}

	if bytes.HasPrefix(data, jpegHeader) {
		imgBuffer.Reset()
	} else if imgBuffer.Len() == 0 {
		// mid-frame packet without a start, wait for the next header
		return nil
	}
	imgBuffer.Write(data)

	if bytes.HasSuffix(data, jpegFooter) {
		fullFrame := make([]byte, imgBuffer.Len())
		copy(fullFrame, imgBuffer.Bytes())
		imgBuffer.Reset()
		return fullFrame
	}
	if imgBuffer.Len() > maxFrameSize {
		imgBuffer.Reset()
	}
	return nil
}

func cameraName(cfg *config.Config, ip string) string {
	if name, ok := cfg.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG frames,
// and forwards complete frames to sink until ctx is done.
func UDPCameraHandler(ctx context.Context, sink FrameSink, logger *logger.Logger, config *config.Config) {
	port := strconv.Itoa(config.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		logger.Error("Failed to resolve UDP address: %v", err)
		return
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Error("Failed to listen on UDP port %s: %v", port, err)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on port %s", port)
	serveCameraPackets(conn, sink, logger, config)
}

func serveCameraPackets(conn *net.UDPConn, sink FrameSink, logger *logger.Logger, config *config.Config) {
	buffer := make([]byte, 65535)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Info("UDP Camera handler stopped")
				return
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		camera := cameraName(config, remoteAddr.IP.String())
		if frame := assembler.add(camera, buffer[:n]); frame != nil {
			sink.HandleCameraImage(frame, camera)
		}
	}
}
