package changes

import (
	"fmt"
	"strings"

	"edziennik-backend/internal/push"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/internal/translation"
)

var gradeActions = []push.Action{
	{Action: "dismiss", Title: "Zamknij"},
	{Action: "show", Title: "Pokaż"},
}

// NotificationData is attached to every grade notification so the web
// app can open the right view.
type NotificationData struct {
	LessonName string           `json:"lessonName"`
	OldGrade   *edziennik.Grade `json:"oldGrade"`
	NewGrade   edziennik.Grade  `json:"newGrade"`
	Login      string           `json:"login"`
	Url        string           `json:"url"`
}

type Message struct {
	Title   string
	Body    string
	Actions []push.Action
	Data    NotificationData
}

func newGradeBody(g edziennik.Grade) string {
	about := g.Description
	if about == "" {
		about = g.Category
	}
	return fmt.Sprintf("%s - %s, wystawiona %s przez %s.", g.Grade, about, g.Date, g.Issuer)
}

func changedGradeBody(tr translation.Manager, g edziennik.Grade, fields []FieldChange) string {
	var body strings.Builder
	fmt.Fprintf(&body, "Nauczyciel %s wprowadził następujące zmiany do Twojej oceny: ", g.Issuer)
	for _, f := range fields {
		body.WriteString(Phrase(tr, f))
		body.WriteString(" ")
	}
	return body.String()
}

// RenderMessage turns a grade change into the notification sent to login.
func RenderMessage(tr translation.Manager, login string, change GradeChange) Message {
	msg := Message{
		Actions: gradeActions,
		Data: NotificationData{
			LessonName: change.Lesson,
			OldGrade:   change.Was,
			NewGrade:   change.Is,
			Login:      login,
			Url:        "/grades",
		},
	}
	switch change.Kind {
	case KindNew:
		msg.Title = change.Lesson + " - nowa ocena"
		msg.Body = newGradeBody(change.Is)
	case KindChanged:
		msg.Title = change.Lesson + " - zmiana oceny"
		msg.Body = changedGradeBody(tr, change.Is, change.Fields)
	}
	return msg
}
