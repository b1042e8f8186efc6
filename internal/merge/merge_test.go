package merge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sandy7272/capture-3d/internal/session"
)

func take(angle session.Angle, container string, data []byte) session.Take {
	return session.NewTake(angle, data, container, 30*time.Second, 1)
}

func TestDecideStrategy(t *testing.T) {
	tests := []struct {
		name  string
		takes []session.Take
		want  Strategy
	}{
		{
			name: "uniform mp4",
			takes: []session.Take{
				take(session.AngleMiddle, "video/mp4", []byte("a")),
				take(session.AngleTop, "video/mp4", []byte("b")),
				take(session.AngleBottom, "video/mp4", []byte("c")),
			},
			want: StrategyConcatCopy,
		},
		{
			name: "uniform webm",
			takes: []session.Take{
				take(session.AngleMiddle, "video/webm", []byte("a")),
				take(session.AngleTop, "video/webm", []byte("b")),
			},
			want: StrategyConcatCopy,
		},
		{
			name: "mixed containers",
			takes: []session.Take{
				take(session.AngleMiddle, "video/mp4", []byte("a")),
				take(session.AngleTop, "video/webm", []byte("b")),
			},
			want: StrategyReencode,
		},
		{
			name: "single take",
			takes: []session.Take{
				take(session.AngleMiddle, "video/webm", []byte("a")),
			},
			want: StrategyConcatCopy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideStrategy(tt.takes); got != tt.want {
				t.Errorf("DecideStrategy() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConcatCopyArgs(t *testing.T) {
	args := concatCopyArgs("/tmp/scratch/inputs.txt", "/tmp/scratch/output.mp4")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f concat",
		"-safe 0",
		"-i /tmp/scratch/inputs.txt",
		"-c copy",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("concat args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/tmp/scratch/output.mp4" {
		t.Errorf("output path must be the final argument, got %q", args[len(args)-1])
	}
}

func TestReencodeArgs(t *testing.T) {
	args := reencodeArgs([]string{"/s/input000.mp4", "/s/input001.webm"}, "/s/output.mp4")
	joined := strings.Join(args, " ")

	// Every input gets its own -i; the concat protocol cannot join
	// MP4/WebM containers.
	for _, want := range []string{
		"-i /s/input000.mp4",
		"-i /s/input001.webm",
		"-filter_complex [0:v:0][1:v:0]concat=n=2:v=1:a=0[v]",
		"-map [v]",
		"-c:v libx264",
		"-preset slow",
		"-crf 15",
		"-pix_fmt yuv420p",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("reencode args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "concat:") {
		t.Errorf("reencode args must not use the concat protocol: %s", joined)
	}
	if args[len(args)-1] != "/s/output.mp4" {
		t.Errorf("output path must be the final argument, got %q", args[len(args)-1])
	}
}

func TestWriteConcatList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.txt")
	if err := writeConcatList(path, []string{"/s/a.mp4", "/s/b.mp4"}); err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	want := "file '/s/a.mp4'\nfile '/s/b.mp4'\n"
	if string(data) != want {
		t.Errorf("list = %q, want %q", data, want)
	}
}

func TestExtForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"video/mp4", ".mp4"},
		{"video/webm", ".webm"},
		{"video/x-matroska", ".mkv"},
		{"application/octet-stream", ".mkv"},
	}
	for _, tt := range tests {
		if got := extForMIME(tt.mime); got != tt.want {
			t.Errorf("extForMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

// Validation must reject bad inputs before touching the engine or the
// filesystem, so these cases run with an unresolvable engine.
func TestService_MergeValidation(t *testing.T) {
	svc, err := NewService(NewEngine("definitely-not-ffmpeg", "definitely-not-ffprobe"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	t.Run("no takes", func(t *testing.T) {
		_, err := svc.Merge(context.Background(), nil)
		me, ok := AsMergeError(err)
		if !ok {
			t.Fatalf("expected MergeError, got %v", err)
		}
		if !strings.Contains(me.Reason, "no takes") {
			t.Errorf("unexpected reason: %s", me.Reason)
		}
	})

	t.Run("empty take", func(t *testing.T) {
		takes := []session.Take{
			take(session.AngleMiddle, "video/mp4", []byte("ok")),
			take(session.AngleTop, "video/mp4", nil),
		}
		_, err := svc.Merge(context.Background(), takes)
		me, ok := AsMergeError(err)
		if !ok {
			t.Fatalf("expected MergeError, got %v", err)
		}
		if !strings.Contains(me.Reason, "empty") {
			t.Errorf("unexpected reason: %s", me.Reason)
		}
	})
}

func TestService_MergeMissingEngine(t *testing.T) {
	svc, _ := NewService(NewEngine("definitely-not-ffmpeg", "definitely-not-ffprobe"))

	takes := []session.Take{
		take(session.AngleMiddle, "video/mp4", []byte("data")),
	}
	_, err := svc.Merge(context.Background(), takes)
	if err == nil {
		t.Fatal("expected error with missing binaries")
	}
	if !strings.Contains(err.Error(), "not found on PATH") {
		t.Errorf("unexpected error: %v", err)
	}

	// Missing binaries are never a validation failure
	if _, ok := AsMergeError(err); ok {
		t.Error("engine resolution failure must not be a MergeError")
	}
}

func TestNewService_RequiresEngine(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("expected error for nil engine")
	}
}

func TestEngine_ResetAllowsReresolution(t *testing.T) {
	e := NewEngine("definitely-not-ffmpeg", "")

	_, _, err1 := e.binaries()
	if err1 == nil {
		t.Fatal("expected resolution failure")
	}

	// Failure is sticky until Reset
	_, _, err2 := e.binaries()
	if err2 == nil {
		t.Fatal("expected sticky failure")
	}

	e.Reset()
	_, _, err3 := e.binaries()
	if err3 == nil {
		t.Fatal("expected failure after reset with same missing binary")
	}
}
