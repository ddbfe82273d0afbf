package customers

type CreateCustomerRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"max=50"`
	Address      string `json:"address"`
	CustomerType string `json:"customer_type" validate:"omitempty,oneof=retail wholesale"`
	Status       string `json:"status" validate:"omitempty,oneof=active inactive"`
}

type UpdateCustomerRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address      *string `json:"address,omitempty"`
	CustomerType *string `json:"customer_type,omitempty" validate:"omitempty,oneof=retail wholesale"`
	Status       *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

type ListCustomersRequest struct {
	Search       string `json:"search"`
	Status       string `json:"status" validate:"omitempty,oneof=active inactive"`
	CustomerType string `json:"customer_type" validate:"omitempty,oneof=retail wholesale"`
}
