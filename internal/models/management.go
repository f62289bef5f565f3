package models

// User is an operator or end user managed through the user service
type User struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

// Device is a field device managed through the system service
type Device struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	SerialNumber string `json:"serialNumber"`
	Status       string `json:"status"`
}

// Project groups users and devices at a location
type Project struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Latitude    string   `json:"latitude"`
	Longitude   string   `json:"longitude"`
	Status      string   `json:"status"`
	Members     []string `json:"members,omitempty"`
	Devices     []string `json:"devices,omitempty"`
}
