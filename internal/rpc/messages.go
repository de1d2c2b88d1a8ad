package rpc

import "time"

type User struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Active    bool
	CreatedAt time.Time
}

func (m *User) Marshal() []byte {
	var e encoder
	e.string(1, m.ID)
	e.string(2, m.Username)
	e.string(3, m.Email)
	e.string(4, m.FirstName)
	e.string(5, m.LastName)
	e.bool(6, m.Active)
	e.timestamp(7, m.CreatedAt)
	return e.b
}

func (m *User) Unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID = f.str()
		case 2:
			m.Username = f.str()
		case 3:
			m.Email = f.str()
		case 4:
			m.FirstName = f.str()
		case 5:
			m.LastName = f.str()
		case 6:
			m.Active = f.boolean()
		case 7:
			m.CreatedAt, err = f.time()
		}
		return err
	})
}

type Doctor struct {
	ID             string
	Name           string
	Specialization string
	Email          string
	Phone          string
	SlotIDs        []string
}

func (m *Doctor) Marshal() []byte {
	var e encoder
	e.string(1, m.ID)
	e.string(2, m.Name)
	e.string(3, m.Specialization)
	e.string(4, m.Email)
	e.string(5, m.Phone)
	e.strings(6, m.SlotIDs)
	return e.b
}

func (m *Doctor) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ID = f.str()
		case 2:
			m.Name = f.str()
		case 3:
			m.Specialization = f.str()
		case 4:
			m.Email = f.str()
		case 5:
			m.Phone = f.str()
		case 6:
			m.SlotIDs = append(m.SlotIDs, f.str())
		}
		return nil
	})
}

type Slot struct {
	ID        string
	DoctorID  string
	StartTime time.Time
	EndTime   time.Time
	Booked    bool
}

func (m *Slot) Marshal() []byte {
	var e encoder
	e.string(1, m.ID)
	e.string(2, m.DoctorID)
	e.timestamp(3, m.StartTime)
	e.timestamp(4, m.EndTime)
	e.bool(5, m.Booked)
	return e.b
}

func (m *Slot) Unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID = f.str()
		case 2:
			m.DoctorID = f.str()
		case 3:
			m.StartTime, err = f.time()
		case 4:
			m.EndTime, err = f.time()
		case 5:
			m.Booked = f.boolean()
		}
		return err
	})
}

type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	SlotID    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Appointment) Marshal() []byte {
	var e encoder
	e.string(1, m.ID)
	e.string(2, m.PatientID)
	e.string(3, m.DoctorID)
	e.string(4, m.SlotID)
	e.string(5, m.Status)
	e.timestamp(6, m.CreatedAt)
	e.timestamp(7, m.UpdatedAt)
	return e.b
}

func (m *Appointment) Unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID = f.str()
		case 2:
			m.PatientID = f.str()
		case 3:
			m.DoctorID = f.str()
		case 4:
			m.SlotID = f.str()
		case 5:
			m.Status = f.str()
		case 6:
			m.CreatedAt, err = f.time()
		case 7:
			m.UpdatedAt, err = f.time()
		}
		return err
	})
}

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

func (*Empty) Marshal() []byte { return nil }

func (*Empty) Unmarshal(b []byte) error {
	return walk(b, func(field) error { return nil })
}

// ---- accounts ----

type RegisterRequest struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

func (m *RegisterRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.Username)
	e.string(2, m.Email)
	e.string(3, m.Password)
	e.string(4, m.ConfirmPassword)
	e.string(5, m.FirstName)
	e.string(6, m.LastName)
	return e.b
}

func (m *RegisterRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Username = f.str()
		case 2:
			m.Email = f.str()
		case 3:
			m.Password = f.str()
		case 4:
			m.ConfirmPassword = f.str()
		case 5:
			m.FirstName = f.str()
		case 6:
			m.LastName = f.str()
		}
		return nil
	})
}

// UserResponse answers Register, GetProfile and UpdateProfile.
type UserResponse struct {
	User *User
}

func (m *UserResponse) Marshal() []byte {
	var e encoder
	if m.User != nil {
		e.message(1, m.User)
	}
	return e.b
}

func (m *UserResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.User = new(User)
			return m.User.Unmarshal(f.raw)
		}
		return nil
	})
}

type LoginRequest struct {
	// Identifier is a username or an email address.
	Identifier string
	Password   string
}

func (m *LoginRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.Identifier)
	e.string(2, m.Password)
	return e.b
}

func (m *LoginRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Identifier = f.str()
		case 2:
			m.Password = f.str()
		}
		return nil
	})
}

type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

func (m *LoginResponse) Marshal() []byte {
	var e encoder
	e.string(1, m.Token)
	e.timestamp(2, m.ExpiresAt)
	if m.User != nil {
		e.message(3, m.User)
	}
	return e.b
}

func (m *LoginResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Token = f.str()
		case 2:
			m.ExpiresAt, err = f.time()
		case 3:
			m.User = new(User)
			err = m.User.Unmarshal(f.raw)
		}
		return err
	})
}

type UpdateProfileRequest struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

func (m *UpdateProfileRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.Username)
	e.string(2, m.Email)
	e.string(3, m.FirstName)
	e.string(4, m.LastName)
	return e.b
}

func (m *UpdateProfileRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Username = f.str()
		case 2:
			m.Email = f.str()
		case 3:
			m.FirstName = f.str()
		case 4:
			m.LastName = f.str()
		}
		return nil
	})
}

type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

func (m *ChangePasswordRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.CurrentPassword)
	e.string(2, m.NewPassword)
	e.string(3, m.ConfirmPassword)
	return e.b
}

func (m *ChangePasswordRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.CurrentPassword = f.str()
		case 2:
			m.NewPassword = f.str()
		case 3:
			m.ConfirmPassword = f.str()
		}
		return nil
	})
}

// ---- password reset ----

type RequestPasswordResetRequest struct {
	Email string
}

func (m *RequestPasswordResetRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.Email)
	return e.b
}

func (m *RequestPasswordResetRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Email = f.str()
		}
		return nil
	})
}

// MessageResponse carries a confirmation to show to the user.
type MessageResponse struct {
	Message string
}

func (m *MessageResponse) Marshal() []byte {
	var e encoder
	e.string(1, m.Message)
	return e.b
}

func (m *MessageResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Message = f.str()
		}
		return nil
	})
}

type ValidateResetTokenRequest struct {
	Token string
}

func (m *ValidateResetTokenRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.Token)
	return e.b
}

func (m *ValidateResetTokenRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Token = f.str()
		}
		return nil
	})
}

type ValidateResetTokenResponse struct {
	ExpiresAt time.Time
}

func (m *ValidateResetTokenResponse) Marshal() []byte {
	var e encoder
	e.timestamp(1, m.ExpiresAt)
	return e.b
}

func (m *ValidateResetTokenResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		if f.num == 1 {
			m.ExpiresAt, err = f.time()
		}
		return err
	})
}

type ResetPasswordRequest struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

func (m *ResetPasswordRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.Token)
	e.string(2, m.NewPassword)
	e.string(3, m.ConfirmPassword)
	return e.b
}

func (m *ResetPasswordRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Token = f.str()
		case 2:
			m.NewPassword = f.str()
		case 3:
			m.ConfirmPassword = f.str()
		}
		return nil
	})
}

// ---- doctors and slots ----

type ListDoctorsResponse struct {
	Doctors []*Doctor
}

func (m *ListDoctorsResponse) Marshal() []byte {
	var e encoder
	for _, d := range m.Doctors {
		e.message(1, d)
	}
	return e.b
}

func (m *ListDoctorsResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		d := new(Doctor)
		if err := d.Unmarshal(f.raw); err != nil {
			return err
		}
		m.Doctors = append(m.Doctors, d)
		return nil
	})
}

// IDRequest names one doctor, or one appointment.
type IDRequest struct {
	ID string
}

func (m *IDRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.ID)
	return e.b
}

func (m *IDRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.ID = f.str()
		}
		return nil
	})
}

type DoctorResponse struct {
	Doctor *Doctor
}

func (m *DoctorResponse) Marshal() []byte {
	var e encoder
	if m.Doctor != nil {
		e.message(1, m.Doctor)
	}
	return e.b
}

func (m *DoctorResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Doctor = new(Doctor)
			return m.Doctor.Unmarshal(f.raw)
		}
		return nil
	})
}

type ListSlotsResponse struct {
	Slots []*Slot
}

func (m *ListSlotsResponse) Marshal() []byte {
	var e encoder
	for _, s := range m.Slots {
		e.message(1, s)
	}
	return e.b
}

func (m *ListSlotsResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		s := new(Slot)
		if err := s.Unmarshal(f.raw); err != nil {
			return err
		}
		m.Slots = append(m.Slots, s)
		return nil
	})
}

// ---- appointments ----

type BookAppointmentRequest struct {
	SlotID string
	// DoctorID is optional; when set it must match the slot's doctor.
	DoctorID string
}

func (m *BookAppointmentRequest) Marshal() []byte {
	var e encoder
	e.string(1, m.SlotID)
	e.string(2, m.DoctorID)
	return e.b
}

func (m *BookAppointmentRequest) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.SlotID = f.str()
		case 2:
			m.DoctorID = f.str()
		}
		return nil
	})
}

type AppointmentResponse struct {
	Appointment *Appointment
}

func (m *AppointmentResponse) Marshal() []byte {
	var e encoder
	if m.Appointment != nil {
		e.message(1, m.Appointment)
	}
	return e.b
}

func (m *AppointmentResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Appointment = new(Appointment)
			return m.Appointment.Unmarshal(f.raw)
		}
		return nil
	})
}

type ListAppointmentsResponse struct {
	Appointments []*Appointment
}

func (m *ListAppointmentsResponse) Marshal() []byte {
	var e encoder
	for _, a := range m.Appointments {
		e.message(1, a)
	}
	return e.b
}

func (m *ListAppointmentsResponse) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		a := new(Appointment)
		if err := a.Unmarshal(f.raw); err != nil {
			return err
		}
		m.Appointments = append(m.Appointments, a)
		return nil
	})
}
