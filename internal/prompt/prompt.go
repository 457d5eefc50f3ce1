// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package prompt asks interactive questions on stdin/stdout needed to
// create a new wallet.
package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh/terminal"
)

// promptList prompts the user with the given prefix, list of valid
// responses, and the default list entry to use. The function will
// repeat the prompt to the user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string, defaultEntry string) (string, error) {
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings, defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// promptListBool prompts the user for a boolean (yes/no) value with
// the given prefix. The function will repeat the prompt to the user
// until they enter a valid response.
func promptListBool(reader *bufio.Reader, prefix string, defaultEntry string) (bool, error) {
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// promptPass prompts the user for a passphrase with the given prefix.
// This function will ask the user to confirm the passphrase and will
// repeat the prompts until the user enters matching responses.
func promptPass(reader *bufio.Reader, prefix string, confirm bool) ([]byte, error) {
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Print(prompt)
		pass, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Print("Confirm passphrase: ")
		confirm, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		confirm = bytes.TrimSpace(confirm)
		if !bytes.Equal(pass, confirm) {
			fmt.Println("The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// PrivatePass asks whether the new wallet should be passphrase
// encrypted and, if so, prompts for and confirms the passphrase. The
// returned bool reports whether encryption was requested; when false
// the returned passphrase is nil and the caller should leave the key
// store unencrypted.
func PrivatePass(reader *bufio.Reader) ([]byte, bool, error) {
	encrypt, err := promptListBool(reader, "Do you want to encrypt your "+
		"wallet with a passphrase?", "yes")
	if err != nil {
		return nil, false, err
	}
	if !encrypt {
		return nil, false, nil
	}

	passphrase, err := promptPass(reader, "Enter the private passphrase "+
		"for your new wallet", true)
	if err != nil {
		return nil, false, err
	}
	return passphrase, true, nil
}
