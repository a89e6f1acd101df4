package schema

import (
	"time"

	"github.com/jacentio/ffcs/store"
)

// Plate is a stored plate record.
type Plate struct {
	ID                 string     `json:"_id"`
	UserAccount        string     `json:"userAccount"`
	CampaignID         string     `json:"campaignId"`
	PlateID            string     `json:"plateId"`
	PlateType          string     `json:"plateType"`
	DropVolume         float64    `json:"dropVolume"`
	BatchID            *string    `json:"batchId"`
	CreatedOn          time.Time  `json:"createdOn"`
	LastImaged         *time.Time `json:"lastImaged"`
	SoakPlacesSelected bool       `json:"soakPlacesSelected"`
	SoakStatus         *string    `json:"soakStatus"`
	SoakExportTime     *time.Time `json:"soakExportTime"`
	SoakTransferTime   *time.Time `json:"soakTransferTime"`
	CryoProtection     bool       `json:"cryoProtection"`
	RedesolveApplied   bool       `json:"redesolveApplied"`
}

// PlateFromDoc decodes a stored plate document.
func PlateFromDoc(d store.Doc) Plate {
	return Plate{
		ID:                 d.ID(),
		UserAccount:        str(d, "userAccount"),
		CampaignID:         str(d, "campaignId"),
		PlateID:            str(d, "plateId"),
		PlateType:          str(d, "plateType"),
		DropVolume:         num(d, "dropVolume"),
		BatchID:            strPtr(d, "batchId"),
		CreatedOn:          timeVal(d, "createdOn"),
		LastImaged:         timePtr(d, "lastImaged"),
		SoakPlacesSelected: boolean(d, "soakPlacesSelected"),
		SoakStatus:         strPtr(d, "soakStatus"),
		SoakExportTime:     timePtr(d, "soakExportTime"),
		SoakTransferTime:   timePtr(d, "soakTransferTime"),
		CryoProtection:     boolean(d, "cryoProtection"),
		RedesolveApplied:   boolean(d, "redesolveApplied"),
	}
}

// Well is a stored well record. Fields are grouped by sub-lifecycle.
type Well struct {
	ID          string  `json:"_id"`
	UserAccount string  `json:"userAccount"`
	CampaignID  string  `json:"campaignId"`
	PlateID     string  `json:"plateId"`
	Well        string  `json:"well"`
	WellEcho    string  `json:"wellEcho"`
	X           int64   `json:"x"`
	Y           int64   `json:"y"`
	XEcho       float64 `json:"xEcho"`
	YEcho       float64 `json:"yEcho"`

	LibraryAssigned      bool     `json:"libraryAssigned"`
	LibraryName          *string  `json:"libraryName"`
	LibraryBarcode       *string  `json:"libraryBarcode"`
	LibraryID            *string  `json:"libraryId"`
	SolventTest          bool     `json:"solventTest"`
	SourceWell           *string  `json:"sourceWell"`
	Smiles               *string  `json:"smiles"`
	CompoundCode         *string  `json:"compoundCode"`
	LibraryConcentration any      `json:"libraryConcentration"`
	SolventVolume        *float64 `json:"solventVolume"`
	LigandTransferVolume *float64 `json:"ligandTransferVolume"`
	LigandConcentration  *float64 `json:"ligandConcentration"`

	SoakStatus         *string    `json:"soakStatus"`
	SoakExportTime     *time.Time `json:"soakExportTime"`
	SoakTransferTime   *time.Time `json:"soakTransferTime"`
	SoakTransferStatus *string    `json:"soakTransferStatus"`
	SoakDuration       *float64   `json:"soakDuration"`

	CryoProtection           bool       `json:"cryoProtection"`
	CryoDesiredConcentration *float64   `json:"cryoDesiredConcentration"`
	CryoTransferVolume       *float64   `json:"cryoTransferVolume"`
	CryoSourceWell           *string    `json:"cryoSourceWell"`
	CryoStatus               *string    `json:"cryoStatus"`
	CryoExportTime           *time.Time `json:"cryoExportTime"`
	CryoTransferTime         *time.Time `json:"cryoTransferTime"`
	CryoName                 *string    `json:"cryoName"`
	CryoBarcode              *string    `json:"cryoBarcode"`

	RedesolveApplied        bool       `json:"redesolveApplied"`
	RedesolveName           *string    `json:"redesolveName"`
	RedesolveBarcode        *string    `json:"redesolveBarcode"`
	RedesolveSourceWell     *string    `json:"redesolveSourceWell"`
	RedesolveTransferVolume *float64   `json:"redesolveTransferVolume"`
	RedesolveStatus         *string    `json:"redesolveStatus"`
	RedesolveExportTime     *time.Time `json:"redesolveExportTime"`

	ShifterComment         *string    `json:"shifterComment"`
	ShifterXtalID          *string    `json:"shifterXtalId"`
	ShifterTimeOfArrival   *time.Time `json:"shifterTimeOfArrival"`
	ShifterTimeOfDeparture *time.Time `json:"shifterTimeOfDeparture"`
	ShifterDuration        *float64   `json:"shifterDuration"`
	PuckBarcode            *string    `json:"puckBarcode"`
	PuckPosition           *string    `json:"puckPosition"`
	PinBarcode             *string    `json:"pinBarcode"`
	PuckType               *string    `json:"puckType"`
	Fished                 bool       `json:"fished"`
	XtalName               *string    `json:"xtalName"`
	ExportedToXls          bool       `json:"exportedToXls"`

	Notes *string `json:"notes"`
}

// WellFromDoc decodes a stored well document.
func WellFromDoc(d store.Doc) Well {
	return Well{
		ID:          d.ID(),
		UserAccount: str(d, "userAccount"),
		CampaignID:  str(d, "campaignId"),
		PlateID:     str(d, "plateId"),
		Well:        str(d, "well"),
		WellEcho:    str(d, "wellEcho"),
		X:           integer(d, "x"),
		Y:           integer(d, "y"),
		XEcho:       num(d, "xEcho"),
		YEcho:       num(d, "yEcho"),

		LibraryAssigned:      boolean(d, "libraryAssigned"),
		LibraryName:          strPtr(d, "libraryName"),
		LibraryBarcode:       strPtr(d, "libraryBarcode"),
		LibraryID:            strPtr(d, "libraryId"),
		SolventTest:          boolean(d, "solventTest"),
		SourceWell:           strPtr(d, "sourceWell"),
		Smiles:               strPtr(d, "smiles"),
		CompoundCode:         strPtr(d, "compoundCode"),
		LibraryConcentration: d["libraryConcentration"],
		SolventVolume:        numPtr(d, "solventVolume"),
		LigandTransferVolume: numPtr(d, "ligandTransferVolume"),
		LigandConcentration:  numPtr(d, "ligandConcentration"),

		SoakStatus:         strPtr(d, "soakStatus"),
		SoakExportTime:     timePtr(d, "soakExportTime"),
		SoakTransferTime:   timePtr(d, "soakTransferTime"),
		SoakTransferStatus: strPtr(d, "soakTransferStatus"),
		SoakDuration:       numPtr(d, "soakDuration"),

		CryoProtection:           boolean(d, "cryoProtection"),
		CryoDesiredConcentration: numPtr(d, "cryoDesiredConcentration"),
		CryoTransferVolume:       numPtr(d, "cryoTransferVolume"),
		CryoSourceWell:           strPtr(d, "cryoSourceWell"),
		CryoStatus:               strPtr(d, "cryoStatus"),
		CryoExportTime:           timePtr(d, "cryoExportTime"),
		CryoTransferTime:         timePtr(d, "cryoTransferTime"),
		CryoName:                 strPtr(d, "cryoName"),
		CryoBarcode:              strPtr(d, "cryoBarcode"),

		RedesolveApplied:        boolean(d, "redesolveApplied"),
		RedesolveName:           strPtr(d, "redesolveName"),
		RedesolveBarcode:        strPtr(d, "redesolveBarcode"),
		RedesolveSourceWell:     strPtr(d, "redesolveSourceWell"),
		RedesolveTransferVolume: numPtr(d, "redesolveTransferVolume"),
		RedesolveStatus:         strPtr(d, "redesolveStatus"),
		RedesolveExportTime:     timePtr(d, "redesolveExportTime"),

		ShifterComment:         strPtr(d, "shifterComment"),
		ShifterXtalID:          strPtr(d, "shifterXtalId"),
		ShifterTimeOfArrival:   timePtr(d, "shifterTimeOfArrival"),
		ShifterTimeOfDeparture: timePtr(d, "shifterTimeOfDeparture"),
		ShifterDuration:        numPtr(d, "shifterDuration"),
		PuckBarcode:            strPtr(d, "puckBarcode"),
		PuckPosition:           strPtr(d, "puckPosition"),
		PinBarcode:             strPtr(d, "pinBarcode"),
		PuckType:               strPtr(d, "puckType"),
		Fished:                 boolean(d, "fished"),
		XtalName:               strPtr(d, "xtalName"),
		ExportedToXls:          boolean(d, "exportedToXls"),

		Notes: strPtr(d, "notes"),
	}
}

// WellsFromDocs decodes a slice of well documents.
func WellsFromDocs(docs []store.Doc) []Well {
	out := make([]Well, len(docs))
	for i, d := range docs {
		out[i] = WellFromDoc(d)
	}
	return out
}

// PlatesFromDocs decodes a slice of plate documents.
func PlatesFromDocs(docs []store.Doc) []Plate {
	out := make([]Plate, len(docs))
	for i, d := range docs {
		out[i] = PlateFromDoc(d)
	}
	return out
}

// Notification is an append-only change record polled by clients.
type Notification struct {
	ID               string    `json:"_id"`
	UserAccount      string    `json:"userAccount"`
	CampaignID       string    `json:"campaignId"`
	CreatedOn        time.Time `json:"createdOn"`
	NotificationType string    `json:"notification_type"`
}

// NotificationFromDoc decodes a stored notification.
func NotificationFromDoc(d store.Doc) Notification {
	return Notification{
		ID:               d.ID(),
		UserAccount:      str(d, "userAccount"),
		CampaignID:       str(d, "campaignId"),
		CreatedOn:        timeVal(d, "createdOn"),
		NotificationType: str(d, "notification_type"),
	}
}

func str(d store.Doc, k string) string {
	s, _ := d[k].(string)
	return s
}

func strPtr(d store.Doc, k string) *string {
	s, ok := d[k].(string)
	if !ok {
		return nil
	}
	return &s
}

func boolean(d store.Doc, k string) bool {
	b, _ := d[k].(bool)
	return b
}

func integer(d store.Doc, k string) int64 {
	switch n := d[k].(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func num(d store.Doc, k string) float64 {
	if p := numPtr(d, k); p != nil {
		return *p
	}
	return 0
}

func numPtr(d store.Doc, k string) *float64 {
	var f float64
	switch n := d[k].(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}

func timeVal(d store.Doc, k string) time.Time {
	if p := timePtr(d, k); p != nil {
		return *p
	}
	return time.Time{}
}

func timePtr(d store.Doc, k string) *time.Time {
	t, ok := d[k].(time.Time)
	if !ok {
		return nil
	}
	return &t
}
