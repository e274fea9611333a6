package dashboard

// Initial values of an add form's fields after mount or reset.
const (
	initialText   = ""
	initialAmount = "0"
)

// Notice is a message shown next to a form, a row or a list.
type Notice struct {
	Message   string
	Retryable bool
}

type TransactionForm struct {
	Description string
	Amount      string
	Notice      *Notice
}

func NewTransactionForm() TransactionForm {
	return TransactionForm{Description: initialText, Amount: initialAmount}
}

type BudgetForm struct {
	Category string // "" is the empty selection
	Amount   string
	Notice   *Notice
}

func NewBudgetForm() BudgetForm {
	return BudgetForm{Category: initialText, Amount: initialAmount}
}

type CategoryForm struct {
	Name   string
	Notice *Notice
}

func NewCategoryForm() CategoryForm {
	return CategoryForm{Name: initialText}
}
