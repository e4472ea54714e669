// Package rest talks to a patient-record service that exposes the pedigree
// and the patient record as XML objects with named properties.
//
// Routes, relative to the record base URL:
//
//	GET  objects/PhenoTips.PedigreeClass/0/?rand=<n>      pedigree object
//	POST objects/PhenoTips.PedigreeClass/0?method=PUT     form: property#data, property#image
//	GET  objects/PhenoTips.PedigreeClass/0/history        revision list
//	GET  objects/PhenoTips.PedigreeClass/0/history/<id>   pedigree object at a revision
//	GET  objects/PhenoTips.PatientClass/0                 patient object
//
// Property values are HTML-escaped before being placed in the XML body.
package rest

import (
	"encoding/xml"
	"html"
)

// Object classes and property names.
const (
	PedigreeClass = "PhenoTips.PedigreeClass"
	PatientClass  = "PhenoTips.PatientClass"

	PropData  = "data"
	PropImage = "image"

	PropFirstName = "first_name"
	PropLastName  = "last_name"
	PropGender    = "gender"
	PropBirthDate = "date_of_birth"
	PropDeathDate = "date_of_death"
)

// ObjectPath returns the path of object 0 of a class.
func ObjectPath(class string) string {
	return "objects/" + class + "/0"
}

// Property is one named value of an object.
type Property struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:"value"`
}

// Object is the XML representation of a record object.
type Object struct {
	XMLName    xml.Name   `xml:"object"`
	ClassName  string     `xml:"className"`
	Number     int        `xml:"number"`
	Properties []Property `xml:"property"`
}

// Get returns the unescaped value of a property. ok is false when the object
// has no such property.
func (o *Object) Get(name string) (value string, ok bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return html.UnescapeString(p.Value), true
		}
	}
	return "", false
}

// Set stores value (escaped) under name, replacing an existing property.
func (o *Object) Set(name, value string) {
	escaped := html.EscapeString(value)
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			o.Properties[i].Value = escaped
			return
		}
	}
	o.Properties = append(o.Properties, Property{Name: name, Value: escaped})
}

// Revision is one entry of the pedigree history.
type Revision struct {
	ID      string `xml:"id,attr"`
	Created int64  `xml:"created,attr"`
	Message string `xml:"message,attr,omitempty"`
}

// History is the XML body of the revision list, newest first.
type History struct {
	XMLName   xml.Name   `xml:"history"`
	Revisions []Revision `xml:"revision"`
}
