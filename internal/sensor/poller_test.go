package sensor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

// fakeBoard answers "<ch>:R\r" queries with scripted responses
type fakeBoard struct {
	mu        sync.Mutex
	responses map[string]string
	out       bytes.Buffer
	queries   []string
}

func (b *fakeBoard) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	query := strings.TrimSuffix(string(p), "\r")
	b.queries = append(b.queries, query)
	ch, _, _ := strings.Cut(query, ":")
	b.out.WriteString(b.responses[ch])

	return len(p), nil
}

func (b *fakeBoard) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.out.Len() == 0 {
		return 0, nil // read timeout
	}
	return b.out.Read(p)
}

type failingPort struct{}

func (failingPort) Write([]byte) (int, error) { return 0, errors.New("input/output error") }
func (failingPort) Read([]byte) (int, error)  { return 0, errors.New("input/output error") }

func TestPoller_Poll(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		want     float64
		err      bool
	}{
		{"plain", "7.51\r", 7.51, false},
		{"crlf", "412\r\n", 412, false},
		{"status lines skipped", "*OK\r*WA\r9.25\r", 9.25, false},
		{"garbage", "ER\r", 0, true},
		{"timeout", "", 0, true},
		{"too many status lines", "*OK\r*OK\r*OK\r*OK\r1\r", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			board := &fakeBoard{responses: map[string]string{"2": tc.response}}
			p := NewPoller(board, []string{"2"})

			err := p.poll("2")
			if tc.err {
				if err == nil {
					t.Fatal("Expected an error")
				}
				if _, err := p.Reading("2"); !errors.Is(err, sampling.ErrSensorUnavailable) {
					t.Errorf("Expected ErrSensorUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			got, err := p.Reading("2")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
			if board.queries[0] != "2:R" {
				t.Errorf("Expected query '2:R', got '%s'", board.queries[0])
			}
		})
	}
}

func TestPoller_StaleReading(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	board := &fakeBoard{responses: map[string]string{"3": "412\r"}}
	p := NewPoller(board, []string{"3"}, WithMaxAge(2*time.Second))
	p.now = func() time.Time { return now }

	if err := p.poll("3"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := p.Reading("3"); err != nil {
		t.Errorf("Expected a fresh reading at max age, got %v", err)
	}

	now = now.Add(time.Millisecond)
	v, err := p.Reading("3")
	if !errors.Is(err, sampling.ErrSensorUnavailable) {
		t.Errorf("Expected ErrSensorUnavailable, got %v", err)
	}
	if v != 412 {
		t.Errorf("Expected the stale value to be returned, got %v", v)
	}
}

func TestPoller_BeginPolling(t *testing.T) {
	board := &fakeBoard{responses: map[string]string{"2": "7.5\r", "3": "410\r"}}
	p := NewPoller(board, []string{"2", "3"}, WithInterval(time.Millisecond))

	stopped, err := p.BeginPolling(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := p.BeginPolling(context.Background()); err == nil {
		t.Error("Expected an error when polling twice")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, errDO := p.Reading("2")
		_, errCond := p.Reading("3")
		if errDO == nil && errCond == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	if p.IsPolling() {
		t.Error("Expected polling to be stopped")
	}
	if err, ok := <-stopped; ok || err != nil {
		t.Errorf("Expected a clean stop, got %v", err)
	}

	if v, err := p.Reading("3"); err != nil || v != 410 {
		t.Errorf("Expected 410, got %v (%v)", v, err)
	}
}

func TestPoller_StopsOnErrors(t *testing.T) {
	testCases := []struct {
		name string
		p    *Poller
		want error
	}{
		{
			"parse errors",
			NewPoller(&fakeBoard{responses: map[string]string{"2": "ER\r"}}, []string{"2"}, WithInterval(time.Millisecond), WithParseErrorsThreshold(3)),
			ErrTooManyParseErrors,
		},
		{
			"broken pipe",
			NewPoller(failingPort{}, []string{"2"}, WithInterval(time.Millisecond)),
			ErrBrokenPipe,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stopped, err := tc.p.BeginPolling(context.Background())
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			select {
			case err := <-stopped:
				if !errors.Is(err, tc.want) {
					t.Errorf("Expected %v, got %v", tc.want, err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Polling did not stop")
			}
		})
	}
}
