// Package labels holds the fixed user-facing strings of the session layer,
// localized through a golang.org/x/text catalog.
package labels

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies one label.
type Key string

const (
	Photo           Key = "label.photo"
	Video           Key = "label.video"
	Voice           Key = "label.voice"
	Animation       Key = "label.animation"
	UnknownMessage  Key = "label.unknown_message"
	UnknownChat     Key = "label.unknown_chat"
	UnknownUser     Key = "label.unknown_user"
	Connecting      Key = "label.connecting"
	Updating        Key = "label.updating"
	Offline         Key = "label.offline"
	UnknownProgress Key = "label.unknown_progress"
)

var translations = map[language.Tag]map[Key]string{
	language.English: {
		Photo:           "Photo",
		Video:           "Video",
		Voice:           "Voice message",
		Animation:       "Animation",
		UnknownMessage:  "Unknown message",
		UnknownChat:     "Unknown chat",
		UnknownUser:     "Unknown user",
		Connecting:      "Connecting...",
		Updating:        "Updating...",
		Offline:         "Offline",
		UnknownProgress: "Unknown",
	},
	language.SimplifiedChinese: {
		Photo:           "照片",
		Video:           "视频",
		Voice:           "语音消息",
		Animation:       "动图",
		UnknownMessage:  "未知消息",
		UnknownChat:     "未知聊天",
		UnknownUser:     "未知用户",
		Connecting:      "连接中...",
		Updating:        "更新中...",
		Offline:         "离线",
		UnknownProgress: "未知",
	},
	language.Spanish: {
		Photo:           "Foto",
		Video:           "Vídeo",
		Voice:           "Mensaje de voz",
		Animation:       "Animación",
		UnknownMessage:  "Mensaje desconocido",
		UnknownChat:     "Chat desconocido",
		UnknownUser:     "Usuario desconocido",
		Connecting:      "Conectando...",
		Updating:        "Actualizando...",
		Offline:         "Sin conexión",
		UnknownProgress: "Desconocido",
	},
}

// supported lists the catalog languages; the first entry is the fallback.
var supported = []language.Tag{language.English, language.SimplifiedChinese, language.Spanish}

var (
	cat     = buildCatalog()
	matcher = language.NewMatcher(supported)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, entries := range translations {
		for key, msg := range entries {
			if err := b.SetString(tag, string(key), msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Labels renders labels in one language.
type Labels struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns labels for the closest supported match of code, such as
// "en", "zh-CN" or "es-419". Unknown or empty codes fall back to English.
func New(code string) *Labels {
	tag := language.English
	if code != "" {
		if parsed, err := language.Parse(code); err == nil {
			_, idx, _ := matcher.Match(parsed)
			tag = supported[idx]
		}
	}
	return &Labels{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Tag returns the resolved language.
func (l *Labels) Tag() language.Tag {
	return l.tag
}

// Get renders one label.
func (l *Labels) Get(k Key) string {
	return l.printer.Sprintf(string(k))
}
