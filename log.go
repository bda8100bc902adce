package rsaledger

import (
	"github.com/privacybydesign/rsaledger/rsakeys"
	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.StandardLogger()
	rsakeys.Logger = Logger
}
