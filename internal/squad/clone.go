package squad

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"squadcore/pkg/domain"
)

var nameSuffix = regexp.MustCompile(`[()0-9 ]*$`)

// BaseName strips a trailing run of digits, spaces and parentheses from a
// token name, so "Goblin (3)" and "Goblin 3" both yield "Goblin".
func BaseName(name string) string {
	return nameSuffix.ReplaceAllString(name, "")
}

// NextName returns "<base> <n>" where n is the lowest positive number not yet
// used by any of the sibling names.
func NextName(base string, siblings []string) string {
	used := make(map[string]bool, len(siblings))
	for _, name := range siblings {
		used[strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, name)] = true
	}
	n := 1
	for used[strconv.Itoa(n)] {
		n++
	}
	return fmt.Sprintf("%s %d", base, n)
}

// CloneMinion places a copy of the minion contextID one grid cell to its
// right and recruits it into the same squad.
func (e *Engine) CloneMinion(ctx context.Context, contextID string, gridSize int) (domain.Token, error) {
	sq, err := e.GetSquad(ctx, contextID)
	if err != nil {
		return domain.Token{}, err
	}
	source, err := e.acc.Minion(ctx, contextID)
	if err != nil {
		return domain.Token{}, err
	}
	tokens, err := e.acc.List(ctx)
	if err != nil {
		return domain.Token{}, err
	}
	src := source.Token()
	var siblings []string
	for _, tok := range tokens {
		if tok.ActorID == src.ActorID {
			siblings = append(siblings, tok.Name)
		}
	}

	clone := src.Clone()
	clone.ID = ""
	clone.Name = NextName(BaseName(src.Name), siblings)
	clone.X = src.X + gridSize
	created, err := e.acc.Create(ctx, clone)
	if err != nil {
		return domain.Token{}, err
	}
	e.logger.Info("cloned minion", "component", "squad", "source_id", contextID, "token_id", created.ID, "squad_id", sq.ID())
	if err := sq.AddMember(ctx, created.ID); err != nil {
		return domain.Token{}, err
	}
	tok, _, err := e.acc.Resolve(ctx, created.ID)
	if err != nil {
		return domain.Token{}, err
	}
	return tok, nil
}
