package commands

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"edziennik-backend/internal/scrapers/edziennik"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type identityFlags struct {
	login       string
	password    string
	passwordMd5 string
	child       string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.login, "login", "", "The portal login.")
	cmd.Flags().StringVar(&f.password, "password", "", "The portal password.")
	cmd.Flags().StringVar(&f.passwordMd5, "password-md5", "", "The md5 hex of the portal password, used instead of --password.")
	cmd.Flags().StringVar(&f.child, "child", "", "Login of the child to act for, for parent accounts.")
	_ = cmd.MarkFlagRequired("login")
	cmd.MarkFlagsMutuallyExclusive("password", "password-md5")
	cmd.MarkFlagsOneRequired("password", "password-md5")
}

func (f *identityFlags) identity() (edziennik.Identity, error) {
	passMd5 := strings.ToLower(f.passwordMd5)
	if f.password != "" {
		sum := md5.Sum([]byte(f.password))
		passMd5 = hex.EncodeToString(sum[:])
	}
	if len(passMd5) != md5.Size*2 {
		return edziennik.Identity{}, errors.New("--password-md5 must be 32 hex characters")
	}
	return edziennik.Identity{
		Login:      f.login,
		PassMd5:    passMd5,
		ChildLogin: f.child,
	}, nil
}

// portalCommand builds a command that fetches one resource of the user and
// prints it with render, or as json.
func portalCommand[T any](
	use, short string,
	fetch func(p *edziennik.Portal, ctx context.Context, id edziennik.Identity) (T, error),
	render func(result T),
) *cobra.Command {
	flags := &identityFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := flags.identity()
			if err != nil {
				return err
			}
			portal, err := openPortal()
			if err != nil {
				return err
			}
			result, err := fetch(portal, cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJson {
				return printJson(result)
			}
			render(result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func init() {
	gradesCmd := portalCommand("grades", "Lists the grades of every lesson.", filteredGrades, renderGrades)
	gradesCmd.Flags().StringVar(&lessonFilter, "lesson", "", "Only show lessons resembling this name.")

	rootCmd.AddCommand(
		portalCommand("login", "Logs in and shows the account.", (*edziennik.Portal).Authenticate, renderLogin),
		gradesCmd,
		portalCommand("exams", "Lists the planned exams.", (*edziennik.Portal).Exams, renderExams),
		portalCommand("homeworks", "Lists the homeworks.", (*edziennik.Portal).Homeworks, renderHomeworks),
		portalCommand("subjects", "Lists the subjects taught in lessons.", (*edziennik.Portal).Subjects, renderSubjects),
		portalCommand("plan", "Shows the lesson plan of the coming school days.", (*edziennik.Portal).LessonPlan, renderPlan),
	)
}

func renderLogin(res edziennik.LoginResult) {
	t := newTable()
	t.AppendRows([]table.Row{
		{"User", res.UserName},
		{"Account", res.AccountType},
		{"Last update", res.LastUpdate},
	})
	if res.AccountType == edziennik.AccountChild {
		t.AppendRow(table.Row{"Login", res.Login})
		t.AppendRow(table.Row{"School", res.School})
	}
	if res.Child != nil {
		t.AppendRow(table.Row{"Child", fmt.Sprintf("%s %s (%s)", res.Child.Name, res.Child.Surname, res.Child.Login)})
		t.AppendRow(table.Row{"School", res.Child.School})
	}
	t.Render()
}

func renderGrades(lessons []edziennik.Lesson) {
	t := newTable()
	t.AppendHeader(table.Row{"Lesson", "Period", "Grade", "Weight", "Category", "Date", "Issuer"})
	for _, lesson := range lessons {
		for _, period := range [][]edziennik.Grade{lesson.PrimePeriod, lesson.LatterPeriod} {
			for _, g := range period {
				t.AppendRow(table.Row{lesson.Name, g.Period, g.Grade, g.Weight, g.Category, g.Date, g.Issuer})
			}
		}
	}
	t.Render()
}

func renderExams(exams []edziennik.Exam) {
	t := newTable()
	t.AppendHeader(table.Row{"Start", "Lesson", "Category", "Subject", "Location", "Issuer"})
	for _, e := range exams {
		t.AppendRow(table.Row{e.DateStart, e.Lesson, e.Category, e.Subject, e.Location, e.Issuer})
	}
	t.Render()
}

func renderHomeworks(homeworks []edziennik.Homework) {
	t := newTable()
	t.AppendHeader(table.Row{"Due", "Lesson", "Info"})
	for _, h := range homeworks {
		t.AppendRow(table.Row{h.DateEnd, h.Lesson, h.Info})
	}
	t.Render()
}

func renderSubjects(subjects []edziennik.Subject) {
	t := newTable()
	t.AppendHeader(table.Row{"Date", "Lesson", "No.", "Subject"})
	for _, s := range subjects {
		number := ""
		switch {
		case len(s.LessonNumbers) > 0:
			number = fmt.Sprint(s.LessonNumbers)
		case s.LessonNumber != 0:
			number = fmt.Sprint(s.LessonNumber)
		}
		t.AppendRow(table.Row{s.Date, s.Lesson, number, s.Value})
	}
	t.Render()
}

func renderPlan(plan edziennik.WeeklyPlan) {
	t := newTable()
	header := table.Row{"Time"}
	rows := 0
	for day := 1; day <= 5; day++ {
		entries := *plan.Day(day)
		date := ""
		if len(entries) > 0 {
			date = entries[0].Date
		}
		header = append(header, date)
		rows = max(rows, len(entries))
	}
	t.AppendHeader(header)

	for i := 0; i < rows; i++ {
		row := make(table.Row, 6)
		for day := 1; day <= 5; day++ {
			entries := *plan.Day(day)
			if i >= len(entries) {
				continue
			}
			row[0] = entries[i].Time
			if !entries[i].Empty {
				row[day] = entries[i].Name + "\n" + entries[i].Teacher
			}
		}
		t.AppendRow(row)
	}
	t.Render()
}
