package state

import "fmt"

type Device interface {
	Reporter
	Name() string
}

// SmartSocket is a smart power socket.
type SmartSocket struct {
	name string
}

func NewSmartSocket(name string) *SmartSocket {
	return &SmartSocket{name: name}
}

func (s *SmartSocket) Name() string {
	return s.name
}

func (s *SmartSocket) CreateReport() (string, error) {
	return fmt.Sprintf("Это умная розетка '%s'. Работает штатно.", s.name), nil
}

// SmartThermometer is a smart thermometer.
type SmartThermometer struct {
	name string
}

func NewSmartThermometer(name string) *SmartThermometer {
	return &SmartThermometer{name: name}
}

func (t *SmartThermometer) Name() string {
	return t.name
}

func (t *SmartThermometer) CreateReport() (string, error) {
	return fmt.Sprintf("Это умный термометр '%s'. Работает штатно.", t.name), nil
}
