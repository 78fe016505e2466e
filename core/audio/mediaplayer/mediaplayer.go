// Package mediaplayer plays compressed audio clips through an external
// player binary. The synthesizers hand back MP3, which the PCM device
// backends cannot decode; shelling out to mpv or ffplay sidesteps pulling
// a decoder into the build.
package mediaplayer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// players lists supported binaries in preference order, with the
// arguments that make them play one file silently and exit.
var players = []struct {
	binary string
	args   []string
}{
	{"mpv", []string{"--no-video", "--really-quiet"}},
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{"aplay", []string{"-q"}},
}

type Player struct {
	binary string
	args   []string
}

// New finds the first available player binary on the PATH.
func New() (*Player, error) {
	for _, player := range players {
		if _, err := exec.LookPath(player.binary); err == nil {
			return &Player{binary: player.binary, args: player.args}, nil
		}
	}
	return nil, fmt.Errorf("no audio player found, install mpv or ffplay")
}

// Play writes the clip to a temporary file and blocks until the player
// exits or the context is cancelled.
func (p *Player) Play(ctx context.Context, clip []byte) error {
	if len(clip) == 0 {
		return nil
	}

	file, err := os.CreateTemp("", "clip-*.mp3")
	if err != nil {
		return fmt.Errorf("failed to create temporary clip file: %w", err)
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(clip); err != nil {
		file.Close()
		return fmt.Errorf("failed to write clip file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close clip file: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.binary, append(p.args, file.Name())...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w", p.binary, err)
	}
	return nil
}
