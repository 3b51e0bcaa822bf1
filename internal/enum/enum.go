package enum

// State machine (CHECK constrained in DB).

const (
	TransactionStatusOpenBill  = "OPEN_BILL"
	TransactionStatusCloseBill = "CLOSE_BILL"
)

// Roles (CHECK constrained in DB).

const (
	RoleAdmin   = "ADMIN"
	RoleWaiters = "WAITERS"
)

// Payment methods (CHECK constrained in DB).

const (
	PaymentMethodQRIS  = "QRIS"
	PaymentMethodCash  = "CASH"
	PaymentMethodDebit = "DEBIT"
)

// PaymentMethods lists every method in report order.
var PaymentMethods = []string{PaymentMethodQRIS, PaymentMethodCash, PaymentMethodDebit}

// Menu item labels.

const (
	ItemTypeFood  = "FOOD"
	ItemTypeDrink = "DRINK"
)

const (
	ItemCategoryMainCourse = "MAIN_COURSE"
	ItemCategorySnack      = "SNACK"
	ItemCategoryDessert    = "DESSERT"
	ItemCategoryCoffee     = "COFFEE"
	ItemCategoryTea        = "TEA"
	ItemCategoryJuice      = "JUICE"
	ItemCategorySoftDrink  = "SOFT_DRINK"
)

// SystemActor is the audit actor recorded when no user is involved
// (migrations, seeds).
const SystemActor = "SYSTEM"
