// Command cli is a small interactive client for the authkeeper HTTP API.
//
// Usage:
//
//	cli [-a http://localhost:8080] [-token <jwt>] register|login|list|me
//
// register and login prompt for the email on stdin and read the secret
// from the terminal without echo.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt + "\n> ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptSecret() (string, error) {
	fmt.Print("Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func postJSON(url string, body any) (int, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func getJSON(url, token string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func main() {
	addr := flag.String("a", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "bearer token for protected commands")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cli [-a addr] [-token jwt] register|login|list|me")
		os.Exit(2)
	}

	reader := bufio.NewReader(os.Stdin)

	switch flag.Arg(0) {

	case "register":
		email, err := promptLine(reader, "Enter email")
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		name, err := promptLine(reader, "Enter display name (optional)")
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		secret, err := promptSecret()
		if err != nil {
			fmt.Println(err.Error())
			return
		}

		status, body, err := postJSON(*addr+"/api/register", map[string]string{
			"email": email, "display_name": name, "secret": secret,
		})
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		if status != http.StatusCreated {
			fmt.Printf("registration failed (%d): %s\n", status, body)
			return
		}
		fmt.Println("Success!")

	case "login":
		email, err := promptLine(reader, "Enter email")
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		secret, err := promptSecret()
		if err != nil {
			fmt.Println(err.Error())
			return
		}

		status, body, err := postJSON(*addr+"/api/login", map[string]string{
			"email": email, "secret": secret,
		})
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		if status != http.StatusOK {
			fmt.Printf("login failed (%d): %s\n", status, body)
			return
		}
		var result struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			fmt.Println(err.Error())
			return
		}
		fmt.Println(result.Token)

	case "list":
		status, body, err := getJSON(*addr+"/api/identities", "")
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		if status != http.StatusOK {
			fmt.Printf("request failed (%d): %s\n", status, body)
			return
		}
		fmt.Println(string(body))

	case "me":
		status, body, err := getJSON(*addr+"/api/me", *token)
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		if status != http.StatusOK {
			fmt.Printf("request failed (%d): %s\n", status, body)
			return
		}
		fmt.Println(string(body))

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		os.Exit(2)
	}
}
