package core

import "strings"

// ParseAdditionalAnswer interprets a [Qn] cell.
//
// A value shaped like [{Maybe},{Yes}] becomes the list ["Maybe", "Yes"].
// Anything else is returned as a single trimmed string with invisible
// characters removed. Option text is not trimmed or validated.
func ParseAdditionalAnswer(value string) AnswerValue {
	if value == "" {
		return AnswerValue{}
	}

	cleaned := strings.TrimSpace(StripInvisible(value))
	if strings.HasPrefix(cleaned, "[{") && strings.HasSuffix(cleaned, "}]") {
		inner := cleaned[2 : len(cleaned)-2]
		return AnswerValue{Multi: strings.Split(inner, "},{"), IsList: true}
	}

	return AnswerValue{Single: cleaned}
}

// GetAdditionalAnswers pairs every question, in the order given, with the
// parsed value of its [Q<position>] column. Missing columns yield an empty
// answer; callers decide whether to submit it.
func GetAdditionalAnswers(row RawRow, questions []AdditionalQuestion) []AdditionalAnswer {
	answers := make([]AdditionalAnswer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, AdditionalAnswer{
			QuestionID: q.ID,
			Position:   q.Position,
			Answer:     ParseAdditionalAnswer(row.Field(QuestionColumn(q.Position))),
		})
	}
	return answers
}
