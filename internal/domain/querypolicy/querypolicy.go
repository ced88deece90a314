// Пакет querypolicy — решение, может ли пользователь с данной ролью
// выполнить присланный SQL-текст.
// Правила: SELECT разрешён всем ролям, всё остальное — только admin_user.
// Классификация идёт по первому слову нормализованной копии текста,
// полноценный разбор SQL не выполняется.
package querypolicy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// Фиксированные сообщения отказа, возвращаются клиенту как есть.
const (
	ReasonInsufficientPrivilege = "Insufficient privileges. Only admin users can run data-modifying or schema-changing queries."
	ReasonSelectOnly            = "Only SELECT queries are allowed."
)

// Слово команды SELECT.
const CommandSelect = "select"

// CommandInsert — единственная команда, которая переписывается.
const CommandInsert = "insert"

// privilegedCommands — команды изменения данных и схемы.
var privilegedCommands = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"drop":     true,
	"alter":    true,
	"create":   true,
	"truncate": true,
}

// returningRe — слово RETURNING в нормализованном тексте.
var returningRe = regexp.MustCompile(`\breturning\b`)

// Outcome — результат проверки запроса. Не сохраняется.
type Outcome struct {
	// Allowed — можно ли выполнять запрос
	Allowed bool
	// Command — слово команды в нижнем регистре ("" для пустого текста)
	Command string
	// Query — текст для выполнения: исходный или переписанный INSERT
	Query string
	// Rewritten — был ли добавлен RETURNING *
	Rewritten bool
	// Reason — сообщение отказа (пусто, если разрешено)
	Reason string
}

// Err возвращает *DeniedError для запрещённого запроса и nil для разрешённого.
func (o Outcome) Err() error {
	if o.Allowed {
		return nil
	}
	return &DeniedError{Command: o.Command, Reason: o.Reason}
}

// DeniedError — запрос отклонён политикой доступа.
type DeniedError struct {
	Command string
	Reason  string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// Validate проверяет SQL-текст для роли и при необходимости
// дописывает RETURNING * к INSERT.
// Чистая функция, не блокируется.
func Validate(sqlText string, role model.Role) Outcome {
	stripped := stripComments(sqlText)
	normalized := normalize(stripped)
	command := commandWord(normalized)

	out := Outcome{Command: command, Query: sqlText}

	switch {
	case command == CommandSelect:
		out.Allowed = true
	case role.IsAdmin():
		out.Allowed = true
	case privilegedCommands[command]:
		out.Reason = ReasonInsufficientPrivilege
		return out
	default:
		out.Reason = ReasonSelectOnly
		return out
	}

	if command == CommandInsert && !returningRe.MatchString(normalized) {
		out.Query = appendReturning(stripped)
		out.Rewritten = true
	}
	return out
}

// Normalize возвращает рабочую копию текста: без комментариев,
// с единичными пробелами, в нижнем регистре.
func Normalize(sqlText string) string {
	return normalize(stripComments(sqlText))
}

// CommandWord возвращает слово команды для SQL-текста.
func CommandWord(sqlText string) string {
	return commandWord(Normalize(sqlText))
}

func normalize(stripped string) string {
	return strings.ToLower(strings.Join(strings.Fields(stripped), " "))
}

// commandWord — ведущая последовательность букв первого токена.
// "select*" и "select(1)" дают "select", "(select" — пустое слово.
func commandWord(normalized string) string {
	first, _, _ := strings.Cut(normalized, " ")
	end := strings.IndexFunc(first, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		return first
	}
	return first[:end]
}

// appendReturning убирает хвостовые пробелы и точки с запятой
// и добавляет " RETURNING *;".
func appendReturning(stripped string) string {
	body := strings.TrimRightFunc(strings.TrimSpace(stripped), func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
	return body + " RETURNING *;"
}

// stripComments удаляет комментарии "-- ..." и "/* ... */".
// Содержимое строковых литералов и идентификаторов в кавычках не трогается.
// Блочный комментарий заменяется пробелом, перевод строки после
// строчного комментария сохраняется.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				i = len(s)
			} else {
				i += nl - 1
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += 2 + end + 1
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
