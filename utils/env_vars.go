package utils

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

func GetEnv[T envType](envVarName string, defaultValue T) T {
	envValue, ok := os.LookupEnv(envVarName)
	if !ok || envValue == "" {
		return defaultValue
	}
	value, err := parseEnv[T](envVarName, envValue)
	if err != nil {
		panic(err)
	}
	return value
}

func GetRequiredEnv[T envType](envVarName string) T {
	envValue, ok := os.LookupEnv(envVarName)
	if !ok || envValue == "" {
		log.Fatalf("%s environment variable is required", envVarName)
	}
	value, err := parseEnv[T](envVarName, envValue)
	if err != nil {
		log.Fatal(err)
	}
	return value
}

type envType interface {
	~string | ~int | ~bool | ~float64
}

func parseEnv[T envType](envVarName, envValue string) (T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		return any(envValue).(T), nil
	case int:
		intValue, err := strconv.Atoi(envValue)
		if err != nil {
			return zero, fmt.Errorf("environment variable %s: '%s' is not an integer", envVarName, envValue)
		}
		return any(intValue).(T), nil
	case bool:
		boolValue, err := strconv.ParseBool(envValue)
		if err != nil {
			return zero, fmt.Errorf("environment variable %s: '%s' is not a boolean", envVarName, envValue)
		}
		return any(boolValue).(T), nil
	case float64:
		floatValue, err := strconv.ParseFloat(envValue, 64)
		if err != nil {
			return zero, fmt.Errorf("environment variable %s: '%s' is not a float", envVarName, envValue)
		}
		return any(floatValue).(T), nil
	}
	return zero, fmt.Errorf("environment variable %s: unsupported type", envVarName)
}
