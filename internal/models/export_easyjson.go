// Кодеки easyjson для событий аналитического экспорта.
// Поддерживаются вручную: типы событий плоские и меняются редко.

package models

import (
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

var (
	_ easyjson.Marshaler   = (*ExportEvent)(nil)
	_ easyjson.Unmarshaler = (*ExportEvent)(nil)
	_ easyjson.Marshaler   = (*ExportEventList)(nil)
	_ easyjson.Unmarshaler = (*ExportEventList)(nil)
)

// MarshalEasyJSON сериализует событие экспорта.
func (e ExportEvent) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"ts":`)
	w.Int64(e.TS)
	w.RawString(`,"kind":`)
	w.String(e.Kind)
	w.RawString(`,"feeds":`)
	if e.Feeds == nil {
		w.RawString(`null`)
	} else {
		w.RawByte('[')
		for i, name := range e.Feeds {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(name)
		}
		w.RawByte(']')
	}
	w.RawString(`,"hit_rate":`)
	w.Float64(e.HitRate)
	w.RawString(`,"api_response_ms":`)
	w.Float64(e.APIResponseMS)
	if e.Hash != "" {
		w.RawString(`,"hash":`)
		w.String(e.Hash)
	}
	w.RawByte('}')
}

// UnmarshalEasyJSON десериализует событие экспорта.
// Неизвестные поля пропускаются.
func (e *ExportEvent) UnmarshalEasyJSON(l *jlexer.Lexer) {
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "ts":
			e.TS = l.Int64()
		case "kind":
			e.Kind = l.String()
		case "feeds":
			if l.IsNull() {
				l.Skip()
				e.Feeds = nil
			} else {
				l.Delim('[')
				e.Feeds = e.Feeds[:0]
				for !l.IsDelim(']') {
					e.Feeds = append(e.Feeds, l.String())
					l.WantComma()
				}
				l.Delim(']')
			}
		case "hit_rate":
			e.HitRate = l.Float64()
		case "api_response_ms":
			e.APIResponseMS = l.Float64()
		case "hash":
			e.Hash = l.String()
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
}

// MarshalEasyJSON сериализует список событий экспорта.
func (el ExportEventList) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"events":`)
	if el.Events == nil {
		w.RawString(`null`)
	} else {
		w.RawByte('[')
		for i := range el.Events {
			if i > 0 {
				w.RawByte(',')
			}
			el.Events[i].MarshalEasyJSON(w)
		}
		w.RawByte(']')
	}
	w.RawByte('}')
}

// UnmarshalEasyJSON десериализует список событий экспорта.
func (el *ExportEventList) UnmarshalEasyJSON(l *jlexer.Lexer) {
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "events":
			if l.IsNull() {
				l.Skip()
				el.Events = nil
			} else {
				l.Delim('[')
				el.Events = el.Events[:0]
				for !l.IsDelim(']') {
					var ev ExportEvent
					ev.UnmarshalEasyJSON(l)
					el.Events = append(el.Events, ev)
					l.WantComma()
				}
				l.Delim(']')
			}
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
}
