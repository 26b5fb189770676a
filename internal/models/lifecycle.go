package models

import "time"

// SerialReservation is one document per issued serial in the serials
// collection. It exists for the lifetime of the serial regardless of which
// lifecycle collection the bin currently occupies.
type SerialReservation struct {
	BinID      string    `json:"binId"`
	ReservedAt time.Time `json:"reservedAt"`
	Archived   bool      `json:"archived"`
	CreatedBy  string    `json:"createdBy"`
}

func (s *SerialReservation) Encode() map[string]interface{} {
	return map[string]interface{}{
		"binId":      s.BinID,
		"reservedAt": s.ReservedAt,
		"archived":   s.Archived,
		"createdBy":  s.CreatedBy,
	}
}

func DecodeSerialReservation(id string, data map[string]interface{}) (SerialReservation, error) {
	r := newDocReader(CollectionSerials, id, data)
	res := SerialReservation{
		BinID:      r.requiredStr("binId"),
		ReservedAt: r.timeVal("reservedAt"),
		Archived:   r.boolVal("archived"),
		CreatedBy:  r.str("createdBy"),
	}
	if r.err != nil {
		return SerialReservation{}, r.err
	}
	return res, nil
}

// ArchivedBin is a bin snapshot in the archive collection. The reason is
// duplicated into both reason and archiveReason for backward-compatible
// querying. After a restore the record stays behind as an audit trail with
// status "restored".
type ArchivedBin struct {
	Serial         string     `json:"serial"`
	Name           string     `json:"name"`
	Capacity       int        `json:"capacity"`
	Threshold      int        `json:"threshold"`
	Location       string     `json:"location"`
	ImageURL       string     `json:"imageUrl"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason"`
	ArchiveReason  string     `json:"archiveReason"`
	ArchivedAt     time.Time  `json:"archivedAt"`
	ArchivedBy     string     `json:"archivedBy"`
	ArchivedByName string     `json:"archivedByName"`
	RestoredAt     *time.Time `json:"restoredAt,omitempty"`
	ModifiedBy     string     `json:"modifiedBy,omitempty"`
}

func DecodeArchivedBin(id string, data map[string]interface{}) (ArchivedBin, error) {
	r := newDocReader(CollectionArchive, id, data)
	arch := ArchivedBin{
		Serial:         r.requiredStr("serial"),
		Name:           r.str("name"),
		Capacity:       r.intVal("capacity"),
		Threshold:      r.intVal("threshold"),
		Location:       r.str("location"),
		ImageURL:       r.str("imageUrl"),
		Status:         r.requiredStr("status"),
		Reason:         r.str("reason"),
		ArchiveReason:  r.str("archiveReason"),
		ArchivedAt:     r.requiredTime("archivedAt"),
		ArchivedBy:     r.str("archivedBy"),
		ArchivedByName: r.str("archivedByName"),
		RestoredAt:     r.timePtr("restoredAt"),
		ModifiedBy:     r.str("modifiedBy"),
	}
	if r.err != nil {
		return ArchivedBin{}, r.err
	}
	return arch, nil
}

// DeletedBin is a soft-deleted snapshot awaiting purge. autoDeleteAfter is
// set once at creation and never changes; past it the record is eligible
// for permanent removal by the retention sweeper.
type DeletedBin struct {
	Serial          string    `json:"serial"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	DeletedAt       time.Time `json:"deletedAt"`
	DeletedBy       string    `json:"deletedBy"`
	ModifiedBy      string    `json:"modifiedBy,omitempty"`
	AutoDeleteAfter time.Time `json:"autoDeleteAfter"`
}

func DecodeDeletedBin(id string, data map[string]interface{}) (DeletedBin, error) {
	r := newDocReader(CollectionDeleted, id, data)
	del := DeletedBin{
		Serial:          r.requiredStr("serial"),
		Name:            r.str("name"),
		Status:          r.requiredStr("status"),
		DeletedAt:       r.requiredTime("deletedAt"),
		DeletedBy:       r.str("deletedBy"),
		ModifiedBy:      r.str("modifiedBy"),
		AutoDeleteAfter: r.requiredTime("autoDeleteAfter"),
	}
	if r.err != nil {
		return DeletedBin{}, r.err
	}
	return del, nil
}
