package flow

// Button catalogs shared by the income and expense flows. Callback ids
// stay stable (they are persisted inside session context and job
// payloads); labels are what lands in transactions and the mirror.

const skipChoiceID = "skip"

var PropertyOptions = []Option{
	{ID: "prop_gnizd", Label: "Гніздечко"},
	{ID: "prop_chaika", Label: "Чайка"},
	{ID: "prop_chaplia", Label: "Чапля"},
	{ID: "prop_sup", Label: "SUP Rental"},
}

var PaymentTypeOptions = []Option{
	{ID: "pay_prepay", Label: "Передоплата"},
	{ID: "pay_balance", Label: "Доплата"},
	{ID: "pay_full", Label: "Оплата"},
}

var PlatformOptions = []Option{
	{ID: "plat_website", Label: "Website"},
	{ID: "plat_instagram", Label: "Instagram"},
	{ID: "plat_booking", Label: "Booking"},
	{ID: "plat_hutshub", Label: "HutsHub"},
	{ID: "plat_airbnb", Label: "AirBnB"},
	{ID: "plat_phone", Label: "Phone"},
	{ID: "plat_return", Label: "Return"},
}

var SupDurationOptions = []Option{
	{ID: "dur_1h", Label: "1 година"},
	{ID: "dur_2h", Label: "2 години"},
	{ID: "dur_3h", Label: "3 години"},
	{ID: "dur_halfday", Label: "Пів дня (4г)"},
	{ID: "dur_fullday", Label: "Весь день"},
}

var AccountTypeOptions = []Option{
	{ID: "acc_account", Label: "Account"},
	{ID: "acc_cash", Label: "Cash"},
	{ID: "acc_nestor", Label: "Nestor Account"},
}

var ExpenseCategoryOptions = []Option{
	{ID: "exp_laundry", Label: "Laundry"},
	{ID: "exp_guest_amenities", Label: "Guest Amenities"},
	{ID: "exp_utilities", Label: "Utilities"},
	{ID: "exp_marketing", Label: "Marketing"},
	{ID: "exp_mgmt_fee", Label: "Management Fee"},
	{ID: "exp_maintenance", Label: "Maintenance"},
	{ID: "exp_capex", Label: "Capital Expenses"},
	{ID: "exp_commissions", Label: "Commissions"},
	{ID: "exp_cleaning_admin", Label: "Cleaning and Administration"},
	{ID: "exp_chemicals", Label: "Chemicals"},
	{ID: "exp_other", Label: "Other"},
	{ID: "exp_software", Label: "Software"},
	{ID: "exp_depreciation", Label: "Depreciation fund"},
	{ID: "exp_taxes", Label: "Taxes"},
}

var ExpensePropertyOptions = []Option{
	{ID: "prop_gnizd", Label: "Гніздечко"},
	{ID: "prop_chaika", Label: "Чайка"},
	{ID: "prop_chaplia", Label: "Чапля"},
	{ID: "prop_all", Label: "Всі"},
}

var PaymentMethodOptions = []Option{
	{ID: "method_cash", Label: "Cash"},
	{ID: "method_transfer", Label: "Bank Transfer"},
}

var PaidByOptions = []Option{
	{ID: "paidby_nestor", Label: "Nestor"},
	{ID: "paidby_ihor", Label: "Ihor"},
	{ID: "paidby_ira", Label: "Ira"},
	{ID: "paidby_other", Label: "Other"},
	{ID: "paidby_account", Label: "Account"},
}

// Label resolves a callback id against a catalog, falling back to the
// id itself so unknown values stay visible instead of vanishing.
func Label(opts []Option, id string) string {
	if id == "" {
		return ""
	}
	for _, o := range opts {
		if o.ID == id {
			return o.Label
		}
	}
	return id
}
