package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sathyagomani/academy/core"
	"github.com/sathyagomani/academy/core/user"
)

// addStudent registers a new student with a generated password. The plaintext
// is held as a one-time credential and disclosed by the first meeting
// invitation email, never printed here.
func (cli *commandLine) addStudent(firstName, lastName, email, phone string) error {
	ctx := context.Background()

	ns := user.NewStudent{
		FirstName:   core.CleanString(firstName),
		LastName:    core.CleanString(lastName),
		Email:       core.CleanString(email, true /* lower */),
		PhoneNumber: core.CleanString(phone),
	}
	if err := cli.usrSvc.CheckUniqueness(ns.Email); err != nil {
		return err
	}

	usr, err := cli.usrSvc.CreateStudent(ctx, ns)
	if err != nil {
		return err
	}
	logger.Printf("student %s created: %s", usr.Email, usr.ID)
	return nil
}

// addAdmin updates or creates an administrator account.
func (cli *commandLine) addAdmin(firstName, lastName, email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			FirstName: core.CleanString(firstName),
			LastName:  core.CleanString(lastName),
			Email:     email,
			Role:      user.RoleAdmin,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if _, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		logger.Printf("admin %s created: %s", usr.Email, usr.ID)
		return nil
	}

	usr.FirstName = core.CleanString(firstName)
	usr.LastName = core.CleanString(lastName)
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	isActive := true
	if _, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive); err != nil {
		return err
	}
	logger.Printf("admin %s updated: %s", usr.Email, usr.ID)
	return nil
}
