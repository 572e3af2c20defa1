// Package models defines data models for the user directory.
package models

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Genders lists the accepted values in display order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

func (g Gender) Valid() bool {
	for _, v := range Genders {
		if g == v {
			return true
		}
	}
	return false
}

type Occupation string

const (
	OccupationStudent  Occupation = "student"
	OccupationEngineer Occupation = "engineer"
	OccupationTeacher  Occupation = "teacher"
	OccupationDoctor   Occupation = "doctor"
	OccupationOther    Occupation = "other"
)

// Occupations lists the accepted values in display order.
var Occupations = []Occupation{
	OccupationStudent,
	OccupationEngineer,
	OccupationTeacher,
	OccupationDoctor,
	OccupationOther,
}

func (o Occupation) Valid() bool {
	for _, v := range Occupations {
		if o == v {
			return true
		}
	}
	return false
}

// User represents a row of the users table
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Gender      Gender     `json:"gender"`
	Birthday    string     `json:"birthday"`
	Occupation  Occupation `json:"occupation"`
	PhoneNumber string     `json:"phone_number"`
	AvatarURL   *string    `json:"avatar_url"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Avatar returns the image reference to render, falling back to defaultURL
// when the user has no avatar.
func (u User) Avatar(defaultURL string) string {
	if u.AvatarURL == nil || *u.AvatarURL == "" {
		return defaultURL
	}
	return *u.AvatarURL
}

type NewUser struct {
	Name        string     `json:"name"`
	Gender      Gender     `json:"gender"`
	Birthday    string     `json:"birthday"`
	Occupation  Occupation `json:"occupation"`
	PhoneNumber string     `json:"phone_number"`
	AvatarURL   *string    `json:"avatar_url"`
}

type UpdateUser struct {
	Name        string     `json:"name"`
	Gender      Gender     `json:"gender"`
	Birthday    string     `json:"birthday"`
	Occupation  Occupation `json:"occupation"`
	PhoneNumber string     `json:"phone_number"`
	AvatarURL   *string    `json:"avatar_url"`
}
