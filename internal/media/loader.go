// Package media implements C1, the Audio Loader: decoding arbitrary
// audio/video containers to mono PCM i16 at a target sample rate by
// shelling out to ffmpeg, without writing temp files, grounded on the
// teacher's ffmpeg-invocation idiom (internal/executil for the
// platform-specific *exec.Cmd constructor) generalized from mediainfo
// probing to a raw PCM pipe decode.
package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/executil"
)

// Info describes the decoded stream, mirroring VAD Result's audio_info.
type Info struct {
	SampleRate      int
	Channels        int
	DurationSeconds float64
}

// PCM is the decoded mono i16 sample buffer plus its stream Info.
type PCM struct {
	Samples []int16
	Info    Info
}

// Decode shells out to ffmpeg to decode path into mono PCM i16 at
// targetSampleRate, reading the raw samples from ffmpeg's stdout pipe so
// no temporary file is ever written, per spec §4.1's decode policy.
// ffmpegPath/ffprobePath default to "ffmpeg"/"ffprobe" on the PATH when
// empty.
func Decode(ctx context.Context, ffmpegPath, ffprobePath, path string, targetSampleRate int) (*PCM, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	duration, err := ProbeDuration(ffprobePath, path)
	if err != nil {
		return nil, core.NewTaskError(core.ErrDecodeError, core.BehaviorAbortTask, fmt.Errorf("probing duration: %w", err))
	}

	cmd := executil.NewCommandContext(ctx, ffmpegPath,
		"-v", "error",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(targetSampleRate),
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return nil, core.NewTaskError(core.ErrUnsupportedFormat, core.BehaviorAbortTask, fmt.Errorf("ffmpeg not found on PATH: %w", err))
		}
		return nil, core.NewTaskError(core.ErrDecodeError, core.BehaviorAbortTask, err)
	}

	samples, readErr := readPCM(stdout)

	waitErr := cmd.Wait()
	if waitErr != nil {
		return nil, core.NewTaskError(core.ErrDecodeError, core.BehaviorAbortTask,
			fmt.Errorf("ffmpeg decode failed: %w: %s", waitErr, strings.TrimSpace(stderr.String())))
	}
	if readErr != nil && readErr != io.EOF {
		return nil, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, readErr)
	}

	return &PCM{
		Samples: samples,
		Info: Info{
			SampleRate:      targetSampleRate,
			Channels:        1,
			DurationSeconds: duration,
		},
	}, nil
}

func readPCM(r io.Reader) ([]int16, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var out []int16
	buf := make([]byte, 2)
	for {
		if _, err := io.ReadFull(br, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, int16(binary.LittleEndian.Uint16(buf)))
	}
}

func isNotFound(err error) bool {
	return err == exec.ErrNotFound || strings.Contains(err.Error(), "executable file not found")
}
