package main

import (
	_ "time/tzdata"

	"github.com/alimikegami/point-of-sales/payment-service/config"
	"github.com/alimikegami/point-of-sales/payment-service/internal/app"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/database/postgres"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/message-queue/kafka"
)

func main() {
	conf := config.CreateNewConfig()

	db, err := postgres.GetDBInstance(conf.PostgreSQLConfig.DBUsername, conf.PostgreSQLConfig.DBPassword, conf.PostgreSQLConfig.DBHost, conf.PostgreSQLConfig.DBPort, conf.PostgreSQLConfig.DBName)
	if err != nil {
		panic(err)
	}

	kafkaProducer := kafka.CreateKafkaProducer(conf)

	application := app.App{
		DB:            db,
		KafkaProducer: kafkaProducer,
		Config:        conf,
	}

	application.Start()
}
