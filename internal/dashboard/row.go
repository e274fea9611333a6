package dashboard

// RowState is the tagged Viewing | Editing{draft} variant of an editable
// row. The zero value is Viewing; the only way to reach Editing is through
// Editing(draft), so an editing row always carries its draft.
type RowState[D any] struct {
	draft *D
}

func Viewing[D any]() RowState[D] {
	return RowState[D]{}
}

func Editing[D any](draft D) RowState[D] {
	return RowState[D]{draft: &draft}
}

func (r RowState[D]) IsEditing() bool {
	return r.draft != nil
}

// Draft returns the draft and true when the row is editing.
func (r RowState[D]) Draft() (D, bool) {
	if r.draft == nil {
		var zero D
		return zero, false
	}
	return *r.draft, true
}

// TransactionDraft holds the raw text typed into an editing transaction row.
type TransactionDraft struct {
	Description string
	Amount      string
}

// BudgetDraft holds the raw amount typed into an editing budget row.
type BudgetDraft struct {
	Amount string
}
