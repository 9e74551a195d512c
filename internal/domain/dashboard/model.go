package dashboard

// Stats is the aggregate snapshot shown on the landing screen.
type Stats struct {
	PatientsRegisteredToday int `json:"patients_registered_today"`
	OrdersCreatedToday      int `json:"orders_created_today"`
	SamplesPendingCollect   int `json:"samples_pending_collection"`
	SamplesAwaitingReceive  int `json:"samples_awaiting_receive"`
	ResultsAwaitingEntry    int `json:"results_awaiting_entry"`
	ResultsAwaitingVerify   int `json:"results_awaiting_verification"`
	ReportsPublishedToday   int `json:"reports_published_today"`
}
