package db

import "time"

// Doctor is a row of doctor_profiles.
type Doctor struct {
	ID             string
	Email          string
	PasswordHash   string
	FullName       string
	MedicalLicense string
	Specialization string
	ClinicName     string
	Phone          string
	AvatarKey      string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Medicine is a row of the medicines reference table.
type Medicine struct {
	ID          string
	Code        string
	Name        string
	GenericName string
	Strength    string
	Form        string
	Active      bool
}

// Prescription is a row of prescriptions. Medicine lines live in
// PrescriptionMedicine.
type Prescription struct {
	ID            string
	DoctorID      string
	PatientName   string
	PatientAge    int
	PatientGender string
	Diagnosis     string
	Instructions  string
	FollowUpDate  *time.Time
	CreatedAt     time.Time
}

// PrescriptionMedicine is one medicine line of a prescription.
type PrescriptionMedicine struct {
	ID              string
	PrescriptionID  string
	MedicineID      string
	MedicineName    string
	Dosage          string
	FrequencyCode   string
	FrequencySymbol string
	DurationDays    int
	MealTiming      string
	LineNo          int
}
