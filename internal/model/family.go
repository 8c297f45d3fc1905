package model

import "time"

type Family struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	JoinCode   string    `json:"join_code"`
	AdminEmail string    `json:"admin_email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
