package cli

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/config"
)

// A standalone binary is the host executable followed by an image and a
// footer: [host][image][8-byte image size LE][4-byte "FSXS"].
var standaloneMagic = [4]byte{'F', 'S', 'X', 'S'}

const footerSize = 12

// PackSelfContained appends image to host with the standalone footer.
func PackSelfContained(host, image []byte) []byte {
	out := make([]byte, 0, len(host)+len(image)+footerSize)
	out = append(out, host...)
	out = append(out, image...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(image)))
	return append(out, standaloneMagic[:]...)
}

// ExtractImage returns the image appended to a standalone binary, or nil
// when data has no footer.
func ExtractImage(data []byte) ([]byte, error) {
	size := len(data)
	if size < footerSize || [4]byte(data[size-4:]) != standaloneMagic {
		return nil, nil
	}
	footerStart := size - footerSize
	imageSize := binary.LittleEndian.Uint64(data[footerStart : footerStart+8])
	if imageSize == 0 || imageSize > uint64(footerStart) {
		return nil, fmt.Errorf("invalid embedded image size: %d", imageSize)
	}
	return data[footerStart-int(imageSize) : footerStart], nil
}

// HostSize is the length of data without any appended images, so packing
// a standalone binary again does not stack images.
func HostSize(data []byte) int {
	size := len(data)
	for size >= footerSize && [4]byte(data[size-4:size]) == standaloneMagic {
		footerStart := size - footerSize
		imageSize := binary.LittleEndian.Uint64(data[footerStart : footerStart+8])
		if imageSize == 0 || imageSize > uint64(footerStart) {
			break
		}
		size = footerStart - int(imageSize)
	}
	return size
}

func hostBinary() ([]byte, error) {
	data, err := hostExecutable()
	if err != nil {
		return nil, err
	}
	return data[:HostSize(data)], nil
}

// runEmbeddedImage runs the image packed into this executable, if any.
// A first argument of "$" skips it and starts the normal command line.
func runEmbeddedImage(args []string, stdout, stderr io.Writer) (int, bool) {
	if len(args) >= 2 && args[1] == "$" {
		os.Args = append(args[:1:1], args[2:]...)
		return 0, false
	}
	data, err := hostExecutable()
	if err != nil {
		return 0, false
	}
	image, err := ExtractImage(data)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading embedded image: %s\n", err)
		return 1, true
	}
	if image == nil {
		return 0, false
	}
	prog, err := bytecode.Unmarshal(image)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading embedded image: %s\n", err)
		return 1, true
	}
	s := &session{stdout: stdout, stderr: stderr, cfg: config.Default(), color: isTerminal(stderr), noCache: true}
	return s.execute(s.newMachine(), filepath.Base(args[0]), prog), true
}

func hostExecutable() ([]byte, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if path, err = filepath.EvalSymlinks(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() < footerSize {
		return nil, errors.New("executable too small")
	}
	return os.ReadFile(path)
}
