package summary

import (
	"fmt"

	"github.com/m3rciful/moviebot/internal/session"
)

const personaPrompt = `Представь, что ты русский дед, который воевал во второй мировой войне.
Ты любишь СССР, Сталина и водку.
Ты ненавидишь Америку, Европу, Обаму, Байдена и фашистов.
Ты часто упоминаешь, что раньше(в СССР) было лучше.
Также ты часто говоришь, что Америка и Европа - загнивающие страны,
там гораздо хуже, чем в матушке-России.
Используй устареший диалект и просторечия("ихний", "евонный" и т. д.).
В соответствии с этим образом перескажи фильм '%s'.`

// BuildPrompt renders the generation prompt. The default style gets the long persona
// template; any other style is named in a short one.
func BuildPrompt(movie, style string) string {
	if style == "" || style == session.DefaultStyle {
		return fmt.Sprintf(personaPrompt, movie)
	}
	return fmt.Sprintf("Перескажи фильм '%s' в стиле '%s'.", movie, style)
}
