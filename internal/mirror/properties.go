package mirror

import (
	"time"

	"fjacquet/stmt-import/internal/models"

	"github.com/jomei/notionapi"
)

// Notion database column names.
const (
	PropName        = "Name"
	PropDescription = "Description"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropAccount     = "Account"
	PropLocation    = "Location"
	PropOnline      = "Online"
	PropEntity      = "Entity"
	PropMatchType   = "Match Type"
	PropChecksum    = "Checksum"
	PropEntityURL   = "Entity Link"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// EntityProperties builds the properties of an entity page.
func EntityProperties(name string) notionapi.Properties {
	return notionapi.Properties{
		PropName: notionapi.TitleProperty{Title: richText(name)},
	}
}

// TransactionProperties builds the properties of a committed transaction
// page. The entity is linked as a relation to its page.
func TransactionProperties(txn models.ConfirmedTransaction) notionapi.Properties {
	amount, _ := txn.Amount.Float64()
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{Title: richText(txn.Description)},
		PropAmount:      notionapi.NumberProperty{Number: amount},
		PropAccount:     notionapi.SelectProperty{Select: notionapi.Option{Name: txn.Account}},
		PropOnline:      notionapi.CheckboxProperty{Checkbox: txn.Online},
		PropChecksum:    notionapi.RichTextProperty{RichText: richText(txn.Checksum)},
		PropEntity: notionapi.RelationProperty{
			Relation: []notionapi.Relation{{ID: notionapi.PageID(txn.EntityID)}},
		},
	}

	if t, err := time.Parse(models.DateLayoutISO, txn.Date); err == nil {
		d := notionapi.Date(t)
		props[PropDate] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
	}
	if txn.Location != "" {
		props[PropLocation] = notionapi.RichTextProperty{RichText: richText(txn.Location)}
	}
	if txn.MatchType != "" {
		props[PropMatchType] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(txn.MatchType)}}
	}
	if txn.EntityURL != "" {
		props[PropEntityURL] = notionapi.URLProperty{URL: txn.EntityURL}
	}
	return props
}
