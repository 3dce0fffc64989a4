package sound

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const sampleRate = beep.SampleRate(44100)

// InitSound starts the playback goroutine and returns the channel to
// send wav paths down.  A new sound cuts off the one still playing; if
// the speaker can't be opened (bench setup), sounds are logged and
// dropped.
func InitSound() chan string {
	soundsToPlay := make(chan string)
	go playLoop(soundsToPlay)
	return soundsToPlay
}

func playLoop(soundsToPlay chan string) {
	defer func() {
		recover()
		drain(soundsToPlay)
	}()

	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		fmt.Println("Failed to open speaker", err)
		drain(soundsToPlay)
		return
	}

	var current *beep.Ctrl
	var stream beep.StreamSeekCloser
	stop := func() {
		if current != nil {
			speaker.Lock()
			current.Paused = true
			current.Streamer = nil
			speaker.Unlock()
			current = nil
		}
		if stream != nil {
			stream.Close()
			stream = nil
		}
	}

	for path := range soundsToPlay {
		stop()

		f, err := os.Open(path)
		if err != nil {
			fmt.Println("Failed to open sound", err)
			continue
		}
		s, _, err := wav.Decode(f)
		if err != nil {
			fmt.Println("Failed to decode sound", err)
			continue
		}
		stream = s
		current = &beep.Ctrl{Streamer: s}
		speaker.Play(current)
	}
	stop()
}

func drain(soundsToPlay chan string) {
	for s := range soundsToPlay {
		fmt.Println("Unable to play", s)
	}
}
