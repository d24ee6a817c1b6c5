package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchResultLimit caps medicine search responses.
const SearchResultLimit = 10

// Queries is the hand-written query layer over the connection pool.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries wraps a pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// Pool exposes the underlying pool for health checks.
func (q *Queries) Pool() *pgxpool.Pool {
	return q.pool
}

type CreateDoctorParams struct {
	Email          string
	PasswordHash   string
	FullName       string
	MedicalLicense string
}

func (q *Queries) CreateDoctor(ctx context.Context, arg CreateDoctorParams) (Doctor, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO doctor_profiles (email, password_hash, full_name, medical_license)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, full_name, medical_license,
		          specialization, clinic_name, phone, avatar_key,
		          last_login_at, created_at, updated_at`,
		arg.Email, arg.PasswordHash, arg.FullName, arg.MedicalLicense)
	return scanDoctor(row)
}

func (q *Queries) GetDoctorByEmail(ctx context.Context, email string) (Doctor, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, full_name, medical_license,
		       specialization, clinic_name, phone, avatar_key,
		       last_login_at, created_at, updated_at
		FROM doctor_profiles WHERE email = $1`, email)
	return scanDoctor(row)
}

func (q *Queries) GetDoctorByID(ctx context.Context, id string) (Doctor, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, full_name, medical_license,
		       specialization, clinic_name, phone, avatar_key,
		       last_login_at, created_at, updated_at
		FROM doctor_profiles WHERE id = $1`, id)
	return scanDoctor(row)
}

type UpdateDoctorProfileParams struct {
	ID             string
	FullName       string
	Specialization string
	ClinicName     string
	Phone          string
	AvatarKey      string
}

func (q *Queries) UpdateDoctorProfile(ctx context.Context, arg UpdateDoctorProfileParams) (Doctor, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE doctor_profiles
		SET full_name = $2, specialization = $3, clinic_name = $4,
		    phone = $5, avatar_key = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, email, password_hash, full_name, medical_license,
		          specialization, clinic_name, phone, avatar_key,
		          last_login_at, created_at, updated_at`,
		arg.ID, arg.FullName, arg.Specialization, arg.ClinicName, arg.Phone, arg.AvatarKey)
	return scanDoctor(row)
}

func (q *Queries) UpdateDoctorPassword(ctx context.Context, id, passwordHash string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE doctor_profiles SET password_hash = $2, updated_at = now()
		WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (q *Queries) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE doctor_profiles SET last_login_at = now() WHERE id = $1`, id)
	return err
}

// likeEscaper neutralizes ILIKE wildcards in user input so a query matches
// them literally. Backslash is Postgres's default LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchMedicines matches the query against name, generic name, and code of
// active medicines, ordered by name.
func (q *Queries) SearchMedicines(ctx context.Context, query string) ([]Medicine, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	rows, err := q.pool.Query(ctx, `
		SELECT id, code, name, generic_name, strength, form, active
		FROM medicines
		WHERE active
		  AND (name ILIKE $1 OR generic_name ILIKE $1 OR code ILIKE $1)
		ORDER BY name
		LIMIT $2`, pattern, SearchResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicines(rows)
}

func (q *Queries) ListActiveMedicines(ctx context.Context) ([]Medicine, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, code, name, generic_name, strength, form, active
		FROM medicines WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMedicines(rows)
}

type PrescriptionMedicineParams struct {
	MedicineID      string
	Dosage          string
	FrequencyCode   string
	FrequencySymbol string
	DurationDays    int
	MealTiming      string
}

type CreatePrescriptionParams struct {
	DoctorID      string
	PatientName   string
	PatientAge    int
	PatientGender string
	Diagnosis     string
	Instructions  string
	FollowUpDate  *time.Time
	Medicines     []PrescriptionMedicineParams
}

// CreatePrescription inserts the prescription and all its medicine lines in
// one transaction.
func (q *Queries) CreatePrescription(ctx context.Context, arg CreatePrescriptionParams) (Prescription, error) {
	var p Prescription

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return p, fmt.Errorf("begin prescription transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO prescriptions
		  (doctor_id, patient_name, patient_age, patient_gender,
		   diagnosis, instructions, follow_up_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, doctor_id, patient_name, patient_age, patient_gender,
		          diagnosis, instructions, follow_up_date, created_at`,
		arg.DoctorID, arg.PatientName, arg.PatientAge, arg.PatientGender,
		arg.Diagnosis, arg.Instructions, arg.FollowUpDate)
	if p, err = scanPrescription(row); err != nil {
		return p, err
	}

	for i, m := range arg.Medicines {
		_, err = tx.Exec(ctx, `
			INSERT INTO prescription_medicines
			  (prescription_id, medicine_id, dosage, frequency_code,
			   frequency_symbol, duration_days, meal_timing, line_no)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, m.MedicineID, m.Dosage, m.FrequencyCode,
			m.FrequencySymbol, m.DurationDays, m.MealTiming, i+1)
		if err != nil {
			return p, fmt.Errorf("insert prescription medicine %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return p, fmt.Errorf("commit prescription: %w", err)
	}
	return p, nil
}

func (q *Queries) GetPrescription(ctx context.Context, id string) (Prescription, []PrescriptionMedicine, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_name, patient_age, patient_gender,
		       diagnosis, instructions, follow_up_date, created_at
		FROM prescriptions WHERE id = $1`, id)
	p, err := scanPrescription(row)
	if err != nil {
		return p, nil, err
	}

	rows, err := q.pool.Query(ctx, `
		SELECT pm.id, pm.prescription_id, pm.medicine_id, m.name,
		       pm.dosage, pm.frequency_code, pm.frequency_symbol,
		       pm.duration_days, pm.meal_timing, pm.line_no
		FROM prescription_medicines pm
		JOIN medicines m ON m.id = pm.medicine_id
		WHERE pm.prescription_id = $1
		ORDER BY pm.line_no`, id)
	if err != nil {
		return p, nil, err
	}
	defer rows.Close()

	var lines []PrescriptionMedicine
	for rows.Next() {
		var l PrescriptionMedicine
		err := rows.Scan(&l.ID, &l.PrescriptionID, &l.MedicineID, &l.MedicineName,
			&l.Dosage, &l.FrequencyCode, &l.FrequencySymbol,
			&l.DurationDays, &l.MealTiming, &l.LineNo)
		if err != nil {
			return p, nil, err
		}
		lines = append(lines, l)
	}
	return p, lines, rows.Err()
}

func (q *Queries) ListPrescriptionsByDoctor(ctx context.Context, doctorID string) ([]Prescription, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, doctor_id, patient_name, patient_age, patient_gender,
		       diagnosis, instructions, follow_up_date, created_at
		FROM prescriptions WHERE doctor_id = $1
		ORDER BY created_at DESC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanDoctor(row pgx.Row) (Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Email, &d.PasswordHash, &d.FullName, &d.MedicalLicense,
		&d.Specialization, &d.ClinicName, &d.Phone, &d.AvatarKey,
		&d.LastLoginAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func scanPrescription(row pgx.Row) (Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.DoctorID, &p.PatientName, &p.PatientAge, &p.PatientGender,
		&p.Diagnosis, &p.Instructions, &p.FollowUpDate, &p.CreatedAt)
	return p, err
}

func collectMedicines(rows pgx.Rows) ([]Medicine, error) {
	var out []Medicine
	for rows.Next() {
		var m Medicine
		err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.GenericName, &m.Strength, &m.Form, &m.Active)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
