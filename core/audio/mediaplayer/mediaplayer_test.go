package mediaplayer

import (
	"context"
	"testing"
)

func TestPlayIgnoresEmptyClip(t *testing.T) {
	player := &Player{binary: "definitely-not-a-player"}

	if err := player.Play(context.Background(), nil); err != nil {
		t.Errorf("expected empty clip to be a no-op, got: %v", err)
	}
}

func TestPlayRunsConfiguredBinary(t *testing.T) {
	// `true` takes any arguments and exits cleanly, standing in for a
	// real player binary.
	player := &Player{binary: "true", args: []string{"--no-video"}}

	if err := player.Play(context.Background(), []byte{0x01, 0x02}); err != nil {
		t.Errorf("failed to play clip: %v", err)
	}
}

func TestPlayReportsPlayerFailure(t *testing.T) {
	player := &Player{binary: "false"}

	if err := player.Play(context.Background(), []byte{0x01}); err == nil {
		t.Error("expected error from failing player")
	}
}
