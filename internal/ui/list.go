package ui

import (
	"fmt"
	"strings"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/charmbracelet/bubbles/list"
)

const descriptionWidth = 40

var _ list.Item = eventItem{}

// eventItem wraps [models.Event] to implement [list.Item].
type eventItem struct {
	event    models.Event
	upcoming bool
}

func (i eventItem) FilterValue() string {
	names := make([]string, 0, len(i.event.Artists))
	for _, a := range i.event.Artists {
		names = append(names, a.Name)
	}
	return i.event.Title + " " + strings.Join(names, " ")
}

func (i eventItem) Title() string { return i.event.Title }

func (i eventItem) Description() string {
	when := "past"
	if i.upcoming {
		when = "upcoming"
	}
	desc := fmt.Sprintf("%s • %s", i.event.Date, when)
	if n := len(i.event.Artists); n > 0 {
		desc = fmt.Sprintf("%s • %d artists", desc, n)
	}
	if short := i.event.DescriptionShort; short != "" {
		desc = fmt.Sprintf("%s • %s", desc, shared.Truncate(short, descriptionWidth))
	}
	return desc
}

// eventItems lists upcoming events before past ones.
func eventItems(upcoming, past []models.Event) []list.Item {
	items := make([]list.Item, 0, len(upcoming)+len(past))
	for _, e := range upcoming {
		items = append(items, eventItem{event: e, upcoming: true})
	}
	for _, e := range past {
		items = append(items, eventItem{event: e})
	}
	return items
}
