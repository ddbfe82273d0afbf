package suppliers

// CreateSupplierRequest is the payload of POST /suppliers.
type CreateSupplierRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address"`
	Region        string `json:"region" validate:"max=100"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateSupplierRequest is the payload of PUT /suppliers/{id}. Absent fields are left unchanged.
type UpdateSupplierRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	ContactPerson *string `json:"contact_person" validate:"omitempty,max=200"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone" validate:"omitempty,max=50"`
	Address       *string `json:"address"`
	Region        *string `json:"region" validate:"omitempty,max=100"`
	Status        *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (r CreateSupplierRequest) toSupplier() Supplier {
	s := Supplier{
		Name:          r.Name,
		ContactPerson: r.ContactPerson,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		Region:        r.Region,
		Status:        r.Status,
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	return s
}

func (r UpdateSupplierRequest) apply(s *Supplier) {
	if r.Name != nil {
		s.Name = *r.Name
	}
	if r.ContactPerson != nil {
		s.ContactPerson = *r.ContactPerson
	}
	if r.Email != nil {
		s.Email = *r.Email
	}
	if r.Phone != nil {
		s.Phone = *r.Phone
	}
	if r.Address != nil {
		s.Address = *r.Address
	}
	if r.Region != nil {
		s.Region = *r.Region
	}
	if r.Status != nil {
		s.Status = *r.Status
	}
}
