package directory

import "github.com/google/uuid"

// Hospital is a facility patients book at. Optional fields are nil when unset.
type Hospital struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Name    string    `db:"name" json:"name"`
	Address *string   `db:"address" json:"address,omitempty"`
	Phone   *string   `db:"phone" json:"phone,omitempty"`
}

// Doctor carries the display metadata shown during doctor selection.
type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	FullName        string    `db:"full_name" json:"full_name"`
	Specialization  *string   `db:"specialization" json:"specialization,omitempty"`
	ConsultationFee *float64  `db:"consultation_fee" json:"consultation_fee,omitempty"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
	PhotoURL        *string   `db:"photo_url" json:"photo_url,omitempty"`
}
