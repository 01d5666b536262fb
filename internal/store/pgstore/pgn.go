package pgstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

type pgnGame struct {
	White       string
	Black       string
	TimeControl string
	Termination string
	Result      string
	Date        time.Time
	SAN         []string
}

func mapResultToPGN(o domain.Outcome) string {
	switch o {
	case domain.OutcomeWhiteWin:
		return "1-0"
	case domain.OutcomeBlackWin:
		return "0-1"
	case domain.OutcomeDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(g pgnGame) string {
	date := g.Date
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Arena rated game\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.Black)))
	if tc := strings.TrimSpace(g.TimeControl); tc != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(tc)))
	}
	if term := strings.TrimSpace(g.Termination); term != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(term)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", g.Result))

	for i := 0; i < len(g.SAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(g.SAN[i])))
		if i+1 < len(g.SAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.SAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(g.Result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
