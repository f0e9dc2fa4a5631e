package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mklatt/dorfplatz/activitypub"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/util"
	"github.com/mklatt/dorfplatz/web"
)

func main() {
	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database := db.GetDB()
	defer database.Close()

	// Standalone runs have no external eligibility source, so every
	// local actor gets social features. An embedding application passes
	// its own gates.Provider instead.
	prov := gates.AllowAll{}

	if conf.Conf.WithFed {
		activitypub.StartDeliveryWorker(database, conf)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := web.Router(database, prov, conf); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Shutting down")
}
