package httpaddons

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	messageStarter = "=-=-=-=-=-=-=-=-="
	splitter       = ","
	lineEnd        = "\r\n"

	maxPacketSize = 16 * 1024 * 1024
)

var (
	ErrEmptyMessage     = errors.New("data is empty")
	ErrOversizeMessage  = errors.New("data is oversize")
	ErrIllegalHeader    = errors.New("header start illegal")
	ErrIncompleteHeader = errors.New("header does not have enough data")
)

// SendMessage writes one framed message and flushes when the writer supports it,
// so a long-polling client receives each message as soon as it is produced.
func SendMessage(writer io.Writer, data []byte) error {
	if len(data) <= 0 {
		return ErrEmptyMessage
	}
	if len(data) > maxPacketSize {
		return ErrOversizeMessage
	}
	if _, err := io.WriteString(writer, headerLine(len(data))); err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return err
	}
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func PollingMessage(reader *bufio.Reader) ([]byte, error) {
	hLine, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	packetSize, err := parseHeaderLine(hLine)
	if err != nil {
		return nil, err
	}
	data := make([]byte, packetSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, err
	}
	return data, nil
}

func headerLine(packetSize int) string {
	return fmt.Sprint(messageStarter, splitter, packetSize, lineEnd)
}

func parseHeaderLine(line string) (int, error) {
	splits := strings.Split(strings.TrimSpace(line), splitter)
	if len(splits) < 2 {
		return 0, ErrIncompleteHeader
	}
	if splits[0] != messageStarter {
		return 0, ErrIllegalHeader
	}
	packetSize, err := strconv.Atoi(splits[1])
	if err != nil {
		return 0, err
	}
	if packetSize <= 0 {
		return 0, ErrEmptyMessage
	}
	if packetSize > maxPacketSize {
		return 0, ErrOversizeMessage
	}
	return packetSize, nil
}
