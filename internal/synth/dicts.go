package synth

var (
	TableNames = []string{
		"Sales", "Customer", "Product", "Store", "Employee", "Budget", "Orders",
		"Inventory", "Supplier", "Region", "Campaign", "Invoice", "Payroll", "Shipment",
	}

	// Column stems by flavour. Sensitive stems exercise the unused-column
	// hints; the rest are ordinary dimensions and facts.
	SensitiveColumns = []string{
		"Email", "Phone", "Mobile Phone", "Birth Date", "Street Address", "Postal Code",
		"Salary", "Password Hash", "SSN", "Credit Card Number", "IP Address", "Full Name",
	}
	DimensionColumns = []string{
		"Region", "Country", "City", "Segment", "Category", "Subcategory", "Brand",
		"Color", "Channel", "Status", "Department", "Priority", "Currency", "Year",
		"Quarter", "Month", "Order Date", "Ship Date",
	}
	FactColumns = []string{
		"Amount", "Cost", "Quantity", "Discount", "Margin", "Units", "Tax", "Freight",
		"Unit Price", "Revenue",
	}

	MeasureNames = []string{"Total Sales", "Avg Price", "Order Count", "Margin %", "YoY Growth"}

	AggregateFunctions = []string{"Sum", "Avg", "Min", "Max", "Count", "CountNonNull"}

	VisualTypes = []string{
		"clusteredColumnChart", "lineChart", "tableEx", "pivotTable", "card",
		"slicer", "map", "donutChart", "barChart", "scatterChart",
	}
)
