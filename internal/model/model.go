// Package model defines the content rows that populate the landing page:
// services, projects, client testimonials, newsletter subscribers and
// contact requests.
package model

import (
	"strings"
)

// Service is one card in the Services section.
type Service struct {
	ID          int64     `db:"id"          json:"id"`
	Title       string    `db:"title"       json:"title"       validate:"required,max=120"`
	Description string    `db:"description" json:"description" validate:"required,max=2000"`
	Icon        string    `db:"icon"        json:"icon"        validate:"max=512"`
	CreatedAt   Timestamp `db:"created_at"  json:"created_at"`
}

// Normalize trims user input in place.
func (s *Service) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	s.Icon = strings.TrimSpace(s.Icon)
}

// Project is one card in the Projects section.
type Project struct {
	ID          int64     `db:"id"          json:"id"`
	Title       string    `db:"title"       json:"title"       validate:"required,max=120"`
	Description string    `db:"description" json:"description" validate:"required,max=2000"`
	Image       string    `db:"image"       json:"image"       validate:"max=512"`
	Link        string    `db:"link"        json:"link"        validate:"omitempty,max=512,http_url"`
	CreatedAt   Timestamp `db:"created_at"  json:"created_at"`
}

// Normalize trims user input in place.
func (p *Project) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Image = strings.TrimSpace(p.Image)
	p.Link = strings.TrimSpace(p.Link)
}

// Client is a testimonial shown in the Clients section.
type Client struct {
	ID          int64     `db:"id"          json:"id"`
	Name        string    `db:"name"        json:"name"        validate:"required,max=120"`
	Designation string    `db:"designation" json:"designation" validate:"max=120"`
	Quote       string    `db:"quote"       json:"quote"       validate:"required,max=2000"`
	Photo       string    `db:"photo"       json:"photo"       validate:"max=512"`
	CreatedAt   Timestamp `db:"created_at"  json:"created_at"`
}

// Normalize trims user input in place.
func (c *Client) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Designation = strings.TrimSpace(c.Designation)
	c.Quote = strings.TrimSpace(c.Quote)
	c.Photo = strings.TrimSpace(c.Photo)
}

// Subscriber is a newsletter signup. Email is unique and stored lower-cased.
type Subscriber struct {
	ID        int64     `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email" validate:"required,max=254,email"`
	CreatedAt Timestamp `db:"created_at" json:"subscribed_at"`
}

// Normalize trims and lower-cases the email address.
func (s *Subscriber) Normalize() {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
}

// ContactRequest is a submission of the public contact form.
type ContactRequest struct {
	ID        int64     `db:"id"         json:"id"`
	FullName  string    `db:"full_name"  json:"full_name" validate:"required,max=120"`
	Email     string    `db:"email"      json:"email"     validate:"required,max=254,email"`
	Mobile    string    `db:"mobile"     json:"mobile"    validate:"required,max=40"`
	City      string    `db:"city"       json:"city"      validate:"required,max=120"`
	CreatedAt Timestamp `db:"created_at" json:"created_at"`
}

// Normalize trims user input in place.
func (c *ContactRequest) Normalize() {
	c.FullName = strings.TrimSpace(c.FullName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Mobile = strings.TrimSpace(c.Mobile)
	c.City = strings.TrimSpace(c.City)
}

// Counts summarises how many rows each content table holds.
type Counts struct {
	Services    int `json:"services"`
	Projects    int `json:"projects"`
	Clients     int `json:"clients"`
	Subscribers int `json:"subscribers"`
	Contacts    int `json:"contacts"`
}
