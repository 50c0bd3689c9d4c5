// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"strconv"
	"strings"
	"unicode"
)

// Topic is a canned answer selected by keywords.
type Topic struct {
	Keywords []string
	Answer   string
}

// Paper is one past question paper.
type Paper struct {
	ID          int
	Subject     string
	SubjectCode string
	Year        int
	Exam        string
	Month       string
	Branch      string
	URL         string
}

// Row returns the paper in the service's tuple layout:
// id, subject, code, year, exam, month, branch, url.
func (p Paper) Row() []any {
	return []any{p.ID, p.Subject, p.SubjectCode, p.Year, p.Exam, p.Month, p.Branch, p.URL}
}

// Knowledge is everything the stub can answer.
type Knowledge struct {
	Assistant []Topic
	Notices   []Topic
	Papers    []Paper

	// Unknown answers queries no topic matches.
	Unknown string
}

// DefaultKnowledge returns a small sample of campus answers.
func DefaultKnowledge() Knowledge {
	return Knowledge{
		Assistant: []Topic{
			{
				Keywords: []string{"history", "established", "founded"},
				Answer: "DTU was established in **1941** as Delhi Polytechnic and became " +
					"Delhi Technological University in 2009. Read more on the " +
					"[about page](https://dtu.ac.in/Web/About/history.php).",
			},
			{
				Keywords: []string{"hod"},
				Answer: "Heads of department are listed on each department's page. " +
					"See the [department directory](https://dtu.ac.in/Web/Departments/).",
			},
			{
				Keywords: []string{"departments", "department"},
				Answer: "DTU has departments including:\n\n" +
					"- Computer Science and Engineering\n" +
					"- Information Technology\n" +
					"- Electronics and Communication Engineering\n" +
					"- Mechanical Engineering\n" +
					"- Civil Engineering",
			},
			{
				Keywords: []string{"placement", "placements", "package"},
				Answer: "Placement statistics are published yearly by the Training and " +
					"Placement cell. The latest report is on the " +
					"[T&P page](https://dtu.ac.in/Web/Placement/).",
			},
			{
				Keywords: []string{"hostel", "hostels"},
				Answer: "DTU has separate hostels for boys and girls with mess facilities. " +
					"Allotment notices are posted by the hostel office.",
			},
			{
				Keywords: []string{"sports", "gym", "stadium"},
				Answer: "The campus has a sports complex with cricket, football, basketball " +
					"and tennis facilities, plus an indoor gym.",
			},
			{
				Keywords: []string{"clubs", "societies", "society"},
				Answer: "Active societies include technical, cultural and entrepreneurship " +
					"clubs. Most recruit at the start of the odd semester.",
			},
			{
				Keywords: []string{"blockchain", "research", "professor", "professors", "faculty"},
				Answer: "Faculty research areas are listed on the " +
					"[CSE faculty page](https://dtu.ac.in/Web/Departments/CSE/faculty/). " +
					"Reach out to faculty whose interests match your project.",
			},
		},
		Notices: []Topic{
			{
				Keywords: []string{"exam", "exams", "datesheet", "schedule"},
				Answer: "The end semester examination schedule has been released. See the " +
					"[examination notice](https://dtu.ac.in/Web/notice/exam-schedule.pdf).",
			},
			{
				Keywords: []string{"holiday", "holidays", "vacation"},
				Answer: "The winter vacation runs from 24 December to 5 January.",
			},
			{
				Keywords: []string{"fee", "fees"},
				Answer: "Fee payment for the even semester closes on 15 January. " +
					"Late fee applies after the deadline.",
			},
		},
		Papers: []Paper{
			{1, "Computer Networks", "CO306", 2023, "End Sem", "May", "COE", "https://dtu.ac.in/papers/CO306 end 2023.pdf"},
			{2, "Computer Networks", "CO306", 2022, "Mid Sem", "March", "COE", "https://dtu.ac.in/papers/CO306 mid 2022.pdf"},
			{3, "Compiler Design", "CO302", 2023, "End Sem", "May", "COE", "https://dtu.ac.in/papers/CO302 end 2023.pdf"},
			{4, "Database Management Systems", "IT204", 2023, "End Sem", "December", "IT", "https://dtu.ac.in/papers/IT204 end 2023.pdf"},
			{5, "Operating System Design", "CO204", 2022, "End Sem", "December", "COE", "https://dtu.ac.in/papers/CO204 end 2022.pdf"},
			{6, "Software Engineering", "IT302", 2023, "Mid Sem", "October", "IT", "https://dtu.ac.in/papers/IT302 mid 2023.pdf"},
		},
		Unknown: "I could not find anything about that yet. Try asking about " +
			"departments, hostels, placements or notices.",
	}
}

// Common words that say nothing about which paper is wanted.
var paperNoise = map[string]bool{
	"pyq": true, "pyqs": true, "of": true, "the": true, "for": true, "paper": true,
	"papers": true, "question": true, "questions": true, "branch": true, "sem": true,
	"semester": true, "exam": true, "previous": true, "year": true, "show": true, "me": true,
}

// Aliases expand common abbreviations in paper queries.
var paperAliases = map[string][]string{
	"dbms":   {"database", "management", "systems"},
	"cn":     {"computer", "networks"},
	"os":     {"operating", "system"},
	"endsem": {"end"},
	"midsem": {"mid"},
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// answer returns the answer of the topic with the most keyword hits.
func (k Knowledge) answer(topics []Topic, query string) string {
	seen := make(map[string]bool)
	for _, w := range words(query) {
		seen[w] = true
	}
	best, bestScore := -1, 0
	for i, t := range topics {
		score := 0
		for _, kw := range t.Keywords {
			if seen[kw] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return k.Unknown
	}
	return topics[best].Answer
}

// papers returns the rows that match the most query terms.
func (k Knowledge) papers(query string) [][]any {
	var terms []string
	for _, w := range words(query) {
		if paperNoise[w] {
			continue
		}
		if alias, ok := paperAliases[w]; ok {
			terms = append(terms, alias...)
			continue
		}
		terms = append(terms, w)
	}

	rows := [][]any{}
	if len(terms) == 0 {
		return rows
	}

	scores := make([]int, len(k.Papers))
	best := 0
	for i, p := range k.Papers {
		hay := make(map[string]bool)
		for _, w := range words(strings.Join([]string{
			p.Subject, p.SubjectCode, strconv.Itoa(p.Year), p.Exam, p.Month, p.Branch,
		}, " ")) {
			hay[w] = true
		}
		for _, t := range terms {
			if hay[t] {
				scores[i]++
			}
		}
		if scores[i] > best {
			best = scores[i]
		}
	}
	if best == 0 {
		return rows
	}
	for i, p := range k.Papers {
		if scores[i] == best {
			rows = append(rows, p.Row())
		}
	}
	return rows
}
