package web

import (
	"encoding/json"
	"fmt"

	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/util"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

// GetWebfinger resolves a bare local username to its actor document
// link.
func GetWebfinger(database *db.DB, username string, conf *util.AppConfig) (error, string) {
	err, actor := database.ReadActorByUsername(username, conf.Conf.Domain)
	if err != nil || !actor.Local() {
		return fmt.Errorf("local actor %s not found", username), GetWebFingerNotFound()
	}

	resp := webfingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", actor.Username, conf.Conf.Domain),
		Links: []webfingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: actor.URI,
			},
		},
	}
	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return err, GetWebFingerNotFound()
	}
	return nil, string(jsonBytes)
}

func GetWebFingerNotFound() string {
	return `{"detail":"Not Found"}`
}
