package constants

// GeocodeStatus is stored in providers.geocode_status.
type GeocodeStatus string

const (
	GeocodeOK      GeocodeStatus = "OK"      // exact match
	GeocodePartial GeocodeStatus = "PARTIAL" // city/zip level match
	GeocodeNone    GeocodeStatus = "NONE"    // not geocoded or lookup failed
)

// UpsertState is the terminal outcome of reconciling one record.
type UpsertState string

const (
	StateNew      UpsertState = "NEW"
	StateExisting UpsertState = "EXISTING"
	StateError    UpsertState = "ERROR"
)

// ValidationPolicy decides what the pipeline does with records failing hard checks.
type ValidationPolicy string

const (
	PolicySkipInvalid       ValidationPolicy = "skip-invalid"
	PolicyImportWithWarning ValidationPolicy = "import-with-warning"
)
