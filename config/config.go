package config

import (
	"os"
	"strconv"

	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
	"github.com/joho/godotenv"
)

type Config struct {
	ServicePort      string
	MetricsPort      string
	Environment      string
	PostgreSQLConfig PostgreSQLConfig
	JWTSecret        string
	WayforpayConfig  WayforpayConfig
	KafkaConfig      KafkaConfig
	SMTPConfig       SMTPConfig
	TracingConfig    TracingConfig
	PaymentTTL       int64
}

type PostgreSQLConfig struct {
	DBHost     string
	DBName     string
	DBPort     string
	DBUsername string
	DBPassword string
}

type WayforpayConfig struct {
	MerchantAccount string
	MerchantSecret  string
	MerchantDomain  string
	PayURL          string
	APIURL          string
	ReferenceSuffix string
	PublicBaseURL   string
	ReturnURL       string
	Language        string
	TestMode        bool
}

type KafkaConfig struct {
	BrokerAddress   string
	BrokerTopic     string
	BrokerPartition int
}

type SMTPConfig struct {
	Sender   string
	Password string
	Server   string
	Port     int
}

type TracingConfig struct {
	CollectorHost string
}

func CreateNewConfig() *Config {
	godotenv.Load(".env")

	smtpPort, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	brokerPartition, _ := strconv.Atoi(os.Getenv("BROKER_PARTITION"))
	paymentTTL, _ := strconv.ParseInt(os.Getenv("PAYMENT_TTL_SECONDS"), 10, 64)
	if paymentTTL == 0 {
		paymentTTL = 24 * 60 * 60
	}

	conf := Config{
		ServicePort: os.Getenv("SERVICE_PORT"),
		MetricsPort: os.Getenv("METRICS_PORT"),
		Environment: os.Getenv("ENVIRONMENT"),
		PostgreSQLConfig: PostgreSQLConfig{
			DBHost:     os.Getenv("DB_HOST"),
			DBName:     os.Getenv("DB_NAME"),
			DBPort:     os.Getenv("DB_PORT"),
			DBUsername: os.Getenv("DB_USERNAME"),
			DBPassword: os.Getenv("DB_PASSWORD"),
		},
		KafkaConfig: KafkaConfig{
			BrokerAddress:   os.Getenv("BROKER_ADDRESS"),
			BrokerTopic:     os.Getenv("BROKER_TOPIC"),
			BrokerPartition: brokerPartition,
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
		WayforpayConfig: WayforpayConfig{
			MerchantAccount: os.Getenv("WAYFORPAY_MERCHANT_ACCOUNT"),
			MerchantSecret:  os.Getenv("WAYFORPAY_MERCHANT_SECRET"),
			MerchantDomain:  os.Getenv("WAYFORPAY_MERCHANT_DOMAIN"),
			PayURL:          os.Getenv("WAYFORPAY_PAY_URL"),
			APIURL:          os.Getenv("WAYFORPAY_API_URL"),
			ReferenceSuffix: os.Getenv("WAYFORPAY_REFERENCE_SUFFIX"),
			PublicBaseURL:   os.Getenv("PUBLIC_BASE_URL"),
			ReturnURL:       os.Getenv("WAYFORPAY_RETURN_URL"),
			Language:        os.Getenv("WAYFORPAY_LANGUAGE"),
			TestMode:        os.Getenv("WAYFORPAY_TEST_MODE") == "true",
		},
		SMTPConfig: SMTPConfig{
			Sender:   os.Getenv("SMTP_SENDER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			Server:   os.Getenv("SMTP_SERVER"),
			Port:     smtpPort,
		},
		TracingConfig: TracingConfig{
			CollectorHost: os.Getenv("COLLECTOR_HOST"),
		},
		PaymentTTL: paymentTTL,
	}

	if conf.WayforpayConfig.TestMode {
		conf.WayforpayConfig.MerchantAccount = wayforpay.TestMerchantAccount
		conf.WayforpayConfig.MerchantSecret = wayforpay.TestMerchantSecret
	}

	if conf.WayforpayConfig.ReferenceSuffix == "" {
		conf.WayforpayConfig.ReferenceSuffix = "w4p"
	}

	if conf.WayforpayConfig.Language == "" {
		conf.WayforpayConfig.Language = "ua"
	}

	return &conf
}
