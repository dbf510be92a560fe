package preview

import (
	"strings"
	"testing"

	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/td"
)

func TestSummarize(t *testing.T) {
	l := labels.New("en")
	tests := []struct {
		name    string
		content td.MessageContent
		want    string
	}{
		{"short text", &td.MessageText{Text: "hello"}, "hello"},
		{"exactly twenty", &td.MessageText{Text: strings.Repeat("a", 20)}, strings.Repeat("a", 20)},
		{"twenty five", &td.MessageText{Text: "abcdefghijklmnopqrstuvwxy"}, "abcdefghijklmnopqrst..."},
		{"multibyte", &td.MessageText{Text: strings.Repeat("é", 21)}, strings.Repeat("é", 20) + "..."},
		{"empty text", &td.MessageText{}, ""},
		{"photo", &td.MessagePhoto{Caption: "ignored"}, "Photo"},
		{"video", &td.MessageVideo{}, "Video"},
		{"voice", &td.MessageVoiceNote{}, "Voice message"},
		{"animation", &td.MessageAnimation{}, "Animation"},
		{"sticker emoji", &td.MessageSticker{Emoji: "👍"}, "👍"},
		{"sticker without emoji", &td.MessageSticker{}, "Unknown message"},
		{"animated emoji", &td.MessageAnimatedEmoji{Emoji: "🎉"}, "🎉"},
		{"unsupported", &td.MessageUnsupported{Kind: "poll"}, "Unknown message"},
		{"nil", nil, "Unknown message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.content, l); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageNil(t *testing.T) {
	if got := Message(nil, labels.New("zh-CN")); got != "未知消息" {
		t.Errorf("Message(nil) = %q, want 未知消息", got)
	}
}
